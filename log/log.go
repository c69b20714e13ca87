package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志插件即zap的Core，多个插件可以组合输出
type Plugin = zapcore.Core

// 使用默认选项和传入的额外选项创建日志器
func NewLogger(plugin Plugin, options ...zap.Option) *zap.Logger {
	return zap.New(plugin, append(DefaultOption(), options...)...)
}

// 将日志按enabler过滤后以JSON格式写入writer
func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(DefaultEncoder(), writer, enabler)
}

func NewStdoutPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewPlugin(zapcore.Lock(zapcore.AddSync(os.Stdout)), enabler)
}

func NewStderrPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewPlugin(zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

/*
输入日志文件路径和级别过滤器，输出文件插件和一个io.Closer

lumberjack没有实现Sync，进程退出前必须调用返回的Closer，否则尾部日志可能丢失
*/
func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	writer := DefaultLumberjackLogger()
	writer.Filename = filePath
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}

// 把多个插件合并为一个，每条日志分别交给所有插件处理
func NewTeePlugin(plugins ...Plugin) Plugin {
	return zapcore.NewTee(plugins...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

/*
输入日志级别、日志文件路径和控制台输出，输出日志器、一个io.Closer和一个错误

级别为空时使用info；console为nil时写标准输出；文件路径非空时同时写入轮转文件。
返回的Closer会先Sync日志器再关闭文件
*/
func Setup(level string, filePath string, console zapcore.WriteSyncer) (*zap.Logger, io.Closer, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	var plugin Plugin
	if console == nil {
		plugin = NewStdoutPlugin(lvl)
	} else {
		plugin = NewPlugin(zapcore.Lock(console), lvl)
	}
	var closer io.Closer = nopCloser{}
	if filePath != "" {
		filePlugin, c := NewFilePlugin(filePath, lvl)
		plugin = NewTeePlugin(plugin, filePlugin)
		closer = c
	}

	logger := NewLogger(plugin)
	return logger, closerFunc(func() error {
		// 控制台在部分平台上Sync会返回EINVAL，忽略
		_ = logger.Sync()
		return closer.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
