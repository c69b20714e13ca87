package spider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"math/rand"
	"time"
)

var ErrMaxDepth = errors.New("max depth limit reached")

// 表示一个具体的HTTP请求
type Request struct {
	Task     *Task  // 所属的任务
	Url      string // 请求的URL
	Method   string // 请求的方法，如GET、POST等
	Depth    int    // 请求的深度，用于控制爬取的最大深度
	Priority int    // 请求的优先级，大于0的请求会被优先调度
	RuleName string // 解析规则的名称
}

/*
无输入，输出一个错误

该方法用于检查当前请求是否超过任务的最大请求深度，MaxDepth小于等于0表示不限制深度
*/
func (r *Request) Check() error {
	if r.Task == nil || r.Task.MaxDepth <= 0 {
		return nil
	}
	if r.Depth > r.Task.MaxDepth {
		return ErrMaxDepth
	}
	return nil
}

// 用于生成请求的唯一识别码，用于去重
func (r *Request) Unique() string {
	block := md5.Sum([]byte(r.Url + r.Method))
	return hex.EncodeToString(block[:])
}

/*
输入一个上下文，输出响应体和一个错误

在工作协程发起请求之前，通过限速器限制请求速率，只有当所有限速器都满足时才能取得令牌；随后在[0, WaitTime)秒内随机休眠，模拟人类行为，最后调用任务的采集器发起请求
*/
func (r *Request) Fetch(ctx context.Context) ([]byte, error) {
	task := r.Task
	if task.Limit != nil {
		if err := task.Limit.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if task.WaitTime > 0 {
		sleeptime := time.Duration(rand.Int63n(task.WaitTime*1000)) * time.Millisecond
		t := time.NewTimer(sleeptime)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if task.Fetcher == nil {
		return nil, errors.New("no fetcher configured for task " + task.Name)
	}

	return task.Fetcher.Get(ctx, r)
}
