package engine

import (
	"context"
	"sync"

	"github.com/dszqbsm/quotecrawler/spider"
)

// 调度器统一接口
type Scheduler interface {
	/*
		输入一个上下文，无输出

		启动调度循环，直到上下文被取消才返回
	*/
	Schedule(ctx context.Context)
	// 提交新的请求，调度循环退出后提交的请求会被丢弃
	Push(reqs ...*spider.Request)
	// 取出一个请求，上下文被取消时返回false
	Pull(ctx context.Context) (*spider.Request, bool)
}

// 调度器：接收新请求，按优先级放入两个队列，再分发给工作协程
type Schedule struct {
	requestCh   chan *spider.Request // 新请求通道
	workerCh    chan *spider.Request // 工作协程从该通道获取请求
	priReqQueue []*spider.Request    // 优先队列，Priority大于0
	reqQueue    []*spider.Request    // 普通队列

	done     chan struct{}
	doneOnce sync.Once
}

func NewSchedule() *Schedule {
	return &Schedule{
		requestCh: make(chan *spider.Request),
		workerCh:  make(chan *spider.Request),
		done:      make(chan struct{}),
	}
}

func (s *Schedule) Push(reqs ...*spider.Request) {
	for _, req := range reqs {
		select {
		case s.requestCh <- req:
		case <-s.done:
			return
		}
	}
}

func (s *Schedule) Pull(ctx context.Context) (*spider.Request, bool) {
	select {
	case r := <-s.workerCh:
		return r, true
	case <-ctx.Done():
		return nil, false
	}
}

/*
输入一个上下文，无输出

每轮循环都从队首挑选下一个待分发的请求，优先队列非空时总是先分发优先队列，同一队列内先进先出。
两个队列都为空时ch为nil，发送分支不会被选中，循环只等待新请求或退出
*/
func (s *Schedule) Schedule(ctx context.Context) {
	defer s.doneOnce.Do(func() { close(s.done) })

	for {
		var (
			next *spider.Request
			ch   chan *spider.Request
		)
		if len(s.priReqQueue) > 0 {
			next, ch = s.priReqQueue[0], s.workerCh
		} else if len(s.reqQueue) > 0 {
			next, ch = s.reqQueue[0], s.workerCh
		}

		select {
		case <-ctx.Done():
			return
		case r := <-s.requestCh:
			if r.Priority > 0 {
				s.priReqQueue = append(s.priReqQueue, r)
			} else {
				s.reqQueue = append(s.reqQueue, r)
			}
		case ch <- next:
			if len(s.priReqQueue) > 0 {
				s.priReqQueue = s.priReqQueue[1:]
			} else {
				s.reqQueue = s.reqQueue[1:]
			}
		}
	}
}
