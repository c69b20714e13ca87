package spider

import (
	"time"

	"github.com/dszqbsm/quotecrawler/limiter"
	"github.com/dszqbsm/quotecrawler/proxy"
	"go.uber.org/zap"
)

// 配置文件中的任务描述
type TaskConfig struct {
	Name     string
	URL      string
	Cookie   string
	WaitTime int64
	Reload   bool
	MaxDepth int
	Fetcher  string
	Limits   []LimitConfig
}

type LimitConfig struct {
	EventCount int
	EventDur   int // 秒
	Bucket     int // 桶大小
}

// 一个任务实例
type Task struct {
	Closed bool
	Rule   RuleTree // 任务的解析规则
	Options
}

/*
输入一个或多个配置，输出一个任务实例

该方法用于创建一个新的任务实例，根据传入的配置信息初始化任务实例的属性，并返回任务实例的指针。
*/
func NewTask(opts ...Option) *Task {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	d := &Task{}
	d.Options = options

	return d
}

// 返回任务的日志器，未配置时返回空日志器
func (t *Task) Logger() *zap.Logger {
	if t.logger == nil {
		return zap.NewNop()
	}
	return t.logger
}

type Options struct {
	Name     string        `json:"name"` // 任务名称，应保证唯一性
	URL      string        `json:"url"`  // 入口地址，非空时替换规则树生成的根请求地址
	Cookie   string        `json:"cookie"`
	WaitTime int64         `json:"wait_time"` // 随机休眠时间上限，秒，0表示不休眠
	Reload   bool          `json:"reload"`    // 网站是否可以重复爬取
	MaxDepth int           `json:"max_depth"` // 最大深度，0表示不限制
	Timeout  time.Duration // http超时时间
	Proxy    proxy.ProxyFunc
	Fetcher  Fetcher
	Storage  Storage
	Limit    limiter.RateLimiter
	logger   *zap.Logger
}

var defaultOptions = Options{
	logger:   zap.NewNop(),
	WaitTime: 0,
	Reload:   false,
	MaxDepth: 0,
	Timeout:  5 * time.Second,
}

type Option func(opts *Options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

func WithURL(url string) Option {
	return func(opts *Options) {
		opts.URL = url
	}
}

func WithCookie(cookie string) Option {
	return func(opts *Options) {
		opts.Cookie = cookie
	}
}

func WithWaitTime(waitTime int64) Option {
	return func(opts *Options) {
		opts.WaitTime = waitTime
	}
}

func WithReload(reload bool) Option {
	return func(opts *Options) {
		opts.Reload = reload
	}
}

func WithFetcher(f Fetcher) Option {
	return func(opts *Options) {
		opts.Fetcher = f
	}
}

func WithStorage(s Storage) Option {
	return func(opts *Options) {
		opts.Storage = s
	}
}

func WithMaxDepth(maxDepth int) Option {
	return func(opts *Options) {
		opts.MaxDepth = maxDepth
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

func WithProxy(proxy proxy.ProxyFunc) Option {
	return func(opts *Options) {
		opts.Proxy = proxy
	}
}

func WithLimit(l limiter.RateLimiter) Option {
	return func(opts *Options) {
		opts.Limit = l
	}
}
