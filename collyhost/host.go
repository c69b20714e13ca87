package collyhost

// 在gocolly上运行与原生引擎相同的任务规则树

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dszqbsm/quotecrawler/engine"
	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/gocolly/colly/v2"
	collyext "github.com/gocolly/colly/v2/extensions"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// colly上下文中保存原始请求的键
const requestKey = "spider.request"

type Host struct {
	options
}

func New(opts ...Option) *Host {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkCount < 1 {
		options.WorkCount = 1
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.reqRepository == nil {
		options.reqRepository = spider.NewReqHistoryRepository()
	}
	return &Host{options: options}
}

/*
输入一个上下文，输出一个错误

每个任务对应一个异步的colly采集器，根请求提交后等待所有采集器结束，再刷新带缓冲的存储。
上下文被取消时未完成的请求立即失败，返回的错误包含ctx.Err()
*/
func (h *Host) Run(ctx context.Context) error {
	tasks, reqs := engine.BindSeeds(h.Seeds, nil, h.Storage, h.Logger)

	collectors := make(map[*spider.Task]*colly.Collector, len(tasks))
	for _, task := range tasks {
		c, err := h.newCollector(ctx, task)
		if err != nil {
			h.Logger.Error("create collector failed", zap.String("task", task.Name), zap.Error(err))
			continue
		}
		collectors[task] = c
	}

	for _, req := range reqs {
		if c, ok := collectors[req.Task]; ok {
			h.visit(c, req)
		}
	}
	for _, c := range collectors {
		c.Wait()
	}

	h.Logger.Info("crawl finished", zap.Int("tasks", len(collectors)))

	err := engine.FlushStorages(tasks, h.Storage)
	if ctx.Err() != nil {
		err = multierr.Append(ctx.Err(), err)
	}
	return err
}

/*
输入一个上下文和一个任务，输出采集器和一个错误

并发数与随机延时来自配置，任务不允许重复爬取时由colly负责去重；每个请求带上随机User-Agent与Cookie，并经过任务的限速器
*/
func (h *Host) newCollector(ctx context.Context, task *spider.Task) (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.Async(true),
		colly.StdlibContext(ctx),
	)
	c.AllowURLRevisit = task.Reload
	if task.Timeout > 0 {
		c.SetRequestTimeout(task.Timeout)
	}
	if task.Proxy != nil {
		c.SetProxyFunc(colly.ProxyFunc(task.Proxy))
	}
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: h.WorkCount,
		RandomDelay: time.Duration(task.WaitTime) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	collyext.RandomUserAgent(c)
	c.OnRequest(func(r *colly.Request) {
		if task.Cookie != "" {
			r.Headers.Set("Cookie", task.Cookie)
		}
		if task.Limit != nil {
			if err := task.Limit.Wait(ctx); err != nil {
				r.Abort()
			}
		}
	})
	c.OnResponse(func(r *colly.Response) {
		h.handleResponse(c, r)
	})
	c.OnError(func(r *colly.Response, err error) {
		if ctx.Err() != nil {
			return
		}
		req, ok := r.Ctx.GetAny(requestKey).(*spider.Request)
		if !ok {
			return
		}
		h.Logger.Error("can't fetch",
			zap.Error(err),
			zap.Int("status", r.StatusCode),
			zap.String("url", req.Url),
		)
		h.retry(r, req)
	})
	return c, nil
}

// 检查深度后把请求交给colly，重复的地址只记录调试日志
func (h *Host) visit(c *colly.Collector, req *spider.Request) {
	if err := req.Check(); err != nil {
		h.Logger.Debug("check failed", zap.Error(err), zap.String("url", req.Url))
		return
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	cctx := colly.NewContext()
	cctx.Put(requestKey, req)
	err := c.Request(method, req.Url, nil, cctx, nil)
	if err == nil {
		return
	}
	var visited *colly.AlreadyVisitedError
	if errors.As(err, &visited) {
		h.Logger.Debug("request has visited", zap.String("url", req.Url))
		return
	}
	h.Logger.Error("visit failed", zap.Error(err), zap.String("url", req.Url))
}

// 首次失败时原样重试一次
func (h *Host) retry(r *colly.Response, req *spider.Request) {
	if !h.reqRepository.AddFailures(req) {
		h.Logger.Warn("request dropped after retry", zap.String("url", req.Url))
		return
	}
	if err := r.Request.Retry(); err != nil {
		h.Logger.Error("retry failed", zap.Error(err), zap.String("url", req.Url))
	}
}

/*
输入采集器和响应，无输出

按请求的规则名解析响应，子请求继续交给同一个采集器，DataCell交给任务的存储
*/
func (h *Host) handleResponse(c *colly.Collector, r *colly.Response) {
	req, ok := r.Ctx.GetAny(requestKey).(*spider.Request)
	if !ok {
		return
	}
	defer func() {
		if err := recover(); err != nil {
			h.Logger.Error("callback panic",
				zap.Any("err", err),
				zap.String("url", req.Url),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	if len(r.Body) < h.MinBodySize {
		h.Logger.Error("can't fetch",
			zap.Int("length", len(r.Body)),
			zap.String("url", req.Url),
		)
		h.retry(r, req)
		return
	}

	rule, ok := req.Task.Rule.Trunk[req.RuleName]
	if !ok {
		h.Logger.Error("parse failed",
			zap.Error(fmt.Errorf("%w: %s/%s", engine.ErrRuleNotFound, req.Task.Name, req.RuleName)),
			zap.String("url", req.Url),
		)
		return
	}
	result, err := rule.ParseFunc(&spider.Context{
		Body: r.Body,
		Req:  req,
	})
	if err != nil {
		h.Logger.Error("ParseFunc failed", zap.Error(err), zap.String("url", req.Url))
		return
	}

	for _, child := range result.Requests {
		if child.Task == nil {
			child.Task = req.Task
		}
		h.visit(c, child)
	}

	for _, item := range result.Items {
		d, ok := item.(*spider.DataCell)
		if !ok || d.Task == nil || d.Task.Storage == nil {
			h.Logger.Sugar().Info("get result: ", item)
			continue
		}
		if err := d.Task.Storage.Save(d); err != nil {
			h.Logger.Error("save failed", zap.String("task", d.Task.Name), zap.Error(err))
		}
	}
}
