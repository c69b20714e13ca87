package sqldb

import (
	"go.uber.org/zap"
)

type options struct {
	logger *zap.Logger
	sqlURL string
	driver string
}

var defaultOptions = options{
	logger: zap.NewNop(),
	driver: DriverMySQL,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// 数据库连接串，mysql为DSN，sqlite为文件路径
func WithConnURL(sqlURL string) Option {
	return func(opts *options) {
		opts.sqlURL = sqlURL
	}
}

// 数据库驱动，mysql或sqlite
func WithDriver(driver string) Option {
	return func(opts *options) {
		opts.driver = driver
	}
}
