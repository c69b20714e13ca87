package engine

import (
	"github.com/dszqbsm/quotecrawler/spider"
	"go.uber.org/zap"
)

type Option func(opts *options)

// 爬虫配置选项
type options struct {
	WorkCount     int            // 工作协程数，用于控制并发量
	Fetcher       spider.Fetcher // 任务未指定采集器时使用的默认采集器
	Storage       spider.Storage // 任务未指定存储时使用的默认存储
	Logger        *zap.Logger
	Seeds         []*spider.Task // 初始种子任务
	MinBodySize   int            // 响应体小于该长度视为抓取失败，0表示不检查
	scheduler     Scheduler
	reqRepository spider.ReqHistoryRepository
}

var defaultOptions = options{
	WorkCount: 4,
	Logger:    zap.NewNop(),
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

func WithFetcher(fetcher spider.Fetcher) Option {
	return func(opts *options) {
		opts.Fetcher = fetcher
	}
}

func WithStorage(s spider.Storage) Option {
	return func(opts *options) {
		opts.Storage = s
	}
}

func WithWorkCount(workCount int) Option {
	return func(opts *options) {
		opts.WorkCount = workCount
	}
}

func WithSeeds(seed []*spider.Task) Option {
	return func(opts *options) {
		opts.Seeds = seed
	}
}

func WithMinBodySize(size int) Option {
	return func(opts *options) {
		opts.MinBodySize = size
	}
}

func WithScheduler(scheduler Scheduler) Option {
	return func(opts *options) {
		opts.scheduler = scheduler
	}
}

func WithReqRepository(reqRepository spider.ReqHistoryRepository) Option {
	return func(opts *options) {
		opts.reqRepository = reqRepository
	}
}
