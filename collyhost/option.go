package collyhost

import (
	"github.com/dszqbsm/quotecrawler/spider"
	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	WorkCount     int // 每个任务的最大并发请求数
	Storage       spider.Storage
	Logger        *zap.Logger
	Seeds         []*spider.Task
	MinBodySize   int
	reqRepository spider.ReqHistoryRepository
}

var defaultOptions = options{
	WorkCount: 4,
	Logger:    zap.NewNop(),
}

func WithWorkCount(workCount int) Option {
	return func(opts *options) {
		opts.WorkCount = workCount
	}
}

func WithStorage(s spider.Storage) Option {
	return func(opts *options) {
		opts.Storage = s
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

func WithSeeds(seeds []*spider.Task) Option {
	return func(opts *options) {
		opts.Seeds = seeds
	}
}

func WithMinBodySize(size int) Option {
	return func(opts *options) {
		opts.MinBodySize = size
	}
}

func WithReqRepository(r spider.ReqHistoryRepository) Option {
	return func(opts *options) {
		opts.reqRepository = r
	}
}
