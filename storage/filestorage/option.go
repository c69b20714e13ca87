package filestorage

import (
	"go.uber.org/zap"
)

const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatYAML  = "yaml"
)

type options struct {
	logger *zap.Logger
	format string
	meta   bool
}

var defaultOptions = options{
	logger: zap.NewNop(),
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// 输出格式：jsonl、csv或yaml，为空时按文件扩展名推断
func WithFormat(format string) Option {
	return func(opts *options) {
		opts.format = format
	}
}

// 为每条记录附加 _task、_rule、_url、_time 字段
func WithMeta(meta bool) Option {
	return func(opts *options) {
		opts.meta = meta
	}
}
