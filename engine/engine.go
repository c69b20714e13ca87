package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"github.com/dszqbsm/quotecrawler/spider"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrRuleNotFound = errors.New("rule not found")

// 爬虫实例，管理整个爬取流程
type Crawler struct {
	out     chan spider.ParseResult // 工作协程把解析结果交给结果处理协程
	pending atomic.Int64            // 已提交但尚未处理完的请求数
	stop    context.CancelFunc
	tasks   []*spider.Task // 本次运行实际启动的任务

	options
}

/*
输入多个配置选项，输出一个爬虫实例

未指定调度器和请求历史时使用默认实现，工作协程数小于1时按1处理
*/
func NewEngine(opts ...Option) *Crawler {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkCount < 1 {
		options.WorkCount = 1
	}
	if options.scheduler == nil {
		options.scheduler = NewSchedule()
	}
	if options.reqRepository == nil {
		options.reqRepository = spider.NewReqHistoryRepository()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	e := &Crawler{}
	e.out = make(chan spider.ParseResult)
	e.options = options
	return e
}

/*
输入一个上下文，输出一个错误

加载种子任务并生成根请求，启动调度器、工作协程和结果处理协程；所有请求处理完毕或上下文被取消时返回。
返回前刷新所有带缓冲的存储，上下文被取消时返回的错误包含ctx.Err()
*/
func (c *Crawler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.stop = cancel

	reqs := c.handleSeeds()
	if len(reqs) == 0 {
		c.Logger.Warn("no root requests, nothing to crawl")
		return c.flush()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		c.scheduler.Schedule(gctx)
		return nil
	})
	for i := 0; i < c.WorkCount; i++ {
		g.Go(func() error {
			c.CreateWork(gctx)
			return nil
		})
	}
	g.Go(func() error {
		c.HandleResult(gctx)
		return nil
	})

	c.addPending(len(reqs))
	go c.scheduler.Push(reqs...)

	_ = g.Wait()

	c.Logger.Info("crawl finished",
		zap.Int("visited", c.reqRepository.VisitedCount()),
		zap.Int64("pending", c.pending.Load()),
	)

	err := c.flush()
	if ctx.Err() != nil {
		err = multierr.Append(ctx.Err(), err)
	}
	return err
}

func (c *Crawler) handleSeeds() []*spider.Request {
	tasks, reqs := BindSeeds(c.Seeds, c.Fetcher, c.Storage, c.Logger)
	c.tasks = tasks
	return reqs
}

/*
输入种子任务、默认采集器、默认存储和日志器，输出成功启动的任务和它们的根请求

自带Root规则的种子直接使用；否则按名称从任务仓库中查找预设规则并绑定到种子上，找不到的种子被跳过。
种子配置了URL时，根请求被替换为一个指向该URL的请求，沿用第一个根请求的规则名
*/
func BindSeeds(seeds []*spider.Task, fetcher spider.Fetcher, storage spider.Storage, logger *zap.Logger) ([]*spider.Task, []*spider.Request) {
	var (
		tasks []*spider.Task
		reqs  []*spider.Request
	)
	for _, task := range seeds {
		if task.Rule.Root == nil {
			preset, ok := spider.TaskStore.Get(task.Name)
			if !ok {
				logger.Error("can not find preset tasks", zap.String("task name", task.Name))
				continue
			}
			task.Rule = preset.Rule
		}
		if task.Fetcher == nil {
			task.Fetcher = fetcher
		}
		if task.Storage == nil {
			task.Storage = storage
		}

		rootreqs, err := task.Rule.Root()
		if err != nil {
			logger.Error("get root failed",
				zap.String("task", task.Name),
				zap.Error(err),
			)
			continue
		}
		if task.URL != "" && len(rootreqs) > 0 {
			rootreqs = []*spider.Request{{
				Url:      task.URL,
				RuleName: rootreqs[0].RuleName,
			}}
		}

		for _, req := range rootreqs {
			req.Task = task
			if req.Method == "" {
				req.Method = http.MethodGet
			}
		}
		tasks = append(tasks, task)
		reqs = append(reqs, rootreqs...)
	}
	return tasks, reqs
}

// 工作协程循环获取请求直到上下文被取消，每个请求处理完后减少待处理计数
func (c *Crawler) CreateWork(ctx context.Context) {
	for {
		req, ok := c.scheduler.Pull(ctx)
		if !ok {
			return
		}
		c.handleRequest(ctx, req)
		c.donePending()
	}
}

/*
输入一个上下文和一个请求，无输出

依次进行深度检查、去重、抓取、响应长度检查和解析，解析出的子请求先计入待处理数再推入调度器。
解析函数的panic被恢复并连同堆栈一起记录
*/
func (c *Crawler) handleRequest(ctx context.Context, req *spider.Request) {
	defer func() {
		if err := recover(); err != nil {
			c.Logger.Error("worker panic",
				zap.Any("err", err),
				zap.String("url", req.Url),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	if req.Task.Closed {
		return
	}
	if err := req.Check(); err != nil {
		c.Logger.Debug("check failed",
			zap.Error(err),
			zap.String("url", req.Url),
		)
		return
	}
	if !req.Task.Reload && !c.reqRepository.TryVisit(req) {
		c.Logger.Debug("request has visited",
			zap.String("url", req.Url),
		)
		return
	}

	body, err := req.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.Logger.Error("can't fetch",
			zap.Error(err),
			zap.String("url", req.Url),
		)
		c.SetFailure(req)
		return
	}

	if len(body) < c.MinBodySize {
		c.Logger.Error("can't fetch",
			zap.Int("length", len(body)),
			zap.String("url", req.Url),
		)
		c.SetFailure(req)
		return
	}

	rule, ok := req.Task.Rule.Trunk[req.RuleName]
	if !ok {
		c.Logger.Error("parse failed",
			zap.Error(fmt.Errorf("%w: %s/%s", ErrRuleNotFound, req.Task.Name, req.RuleName)),
			zap.String("url", req.Url),
		)
		return
	}

	result, err := rule.ParseFunc(&spider.Context{
		Body: body,
		Req:  req,
	})
	if err != nil {
		c.Logger.Error("ParseFunc failed",
			zap.Error(err),
			zap.String("url", req.Url),
		)
		return
	}

	if len(result.Requests) > 0 {
		for _, r := range result.Requests {
			if r.Task == nil {
				r.Task = req.Task
			}
		}
		c.addPending(len(result.Requests))
		c.scheduler.Push(result.Requests...)
	}

	select {
	case c.out <- result:
	case <-ctx.Done():
	}
}

// 结果处理协程：DataCell交给所属任务的存储，其余数据仅记录日志
func (c *Crawler) HandleResult(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-c.out:
			for _, item := range result.Items {
				d, ok := item.(*spider.DataCell)
				if !ok || d.Task == nil || d.Task.Storage == nil {
					c.Logger.Sugar().Info("get result: ", item)
					continue
				}
				if err := d.Task.Storage.Save(d); err != nil {
					c.Logger.Error("save failed",
						zap.String("task", d.Task.Name),
						zap.Error(err),
					)
				}
			}
		}
	}
}

/*
输入一个请求，无输出

请求首次失败时重新推入调度器再试一次，再次失败则丢弃
*/
func (c *Crawler) SetFailure(req *spider.Request) {
	if c.reqRepository.AddFailures(req) {
		c.addPending(1)
		c.scheduler.Push(req)
		return
	}
	c.Logger.Warn("request dropped after retry", zap.String("url", req.Url))
}

func (c *Crawler) addPending(n int) {
	c.pending.Add(int64(n))
}

// 待处理数归零说明没有新的请求会再产生，此时结束本次运行
func (c *Crawler) donePending() {
	if c.pending.Add(-1) == 0 && c.stop != nil {
		c.stop()
	}
}

func (c *Crawler) flush() error {
	return FlushStorages(c.tasks, c.Storage)
}

// 刷新任务所用的以及额外传入的所有不同的带缓冲存储，错误合并后返回
func FlushStorages(tasks []*spider.Task, extra ...spider.Storage) error {
	var err error
	seen := make(map[spider.Storage]bool)
	storages := make([]spider.Storage, 0, len(tasks)+len(extra))
	for _, t := range tasks {
		storages = append(storages, t.Storage)
	}
	storages = append(storages, extra...)

	for _, s := range storages {
		if s == nil || seen[s] {
			continue
		}
		seen[s] = true
		if f, ok := s.(spider.Flusher); ok {
			err = multierr.Append(err, f.Flush())
		}
	}
	return err
}
