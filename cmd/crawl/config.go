package crawl

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/spf13/viper"
)

// 配置文件中的键
const (
	keyLogLevel       = "logLevel"
	keyLogFile        = "logFile"
	keyFetcherType    = "fetcher.type"
	keyFetcherTimeout = "fetcher.timeout"
	keyFetcherProxy   = "fetcher.proxy"
	keyStorageType    = "storage.type"
	keyStorageSQLURL  = "storage.sqlURL"
	keyStorageDriver  = "storage.driver"
	keyStoragePath    = "storage.path"
	keyStorageFormat  = "storage.format"
	keyStorageBatch   = "storage.batchCount"
	keyStorageMeta    = "storage.meta"
	keyEngineHost     = "engine.host"
	keyEngineWorkers  = "engine.workCount"
	keyEngineMinBody  = "engine.minBodySize"
	keyTasks          = "Tasks"
)

const DefaultTask = "toscrape-xpath"

type Config struct {
	LogLevel string
	LogFile  string
	Fetcher  FetcherConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Tasks    []spider.TaskConfig
}

type FetcherConfig struct {
	Type    string   // base或browser
	Timeout int      // 毫秒
	Proxy   []string // 代理列表，轮询使用
}

type StorageConfig struct {
	Type       string // file、mysql、sqlite或none
	SQLURL     string `mapstructure:"sqlURL"`
	Driver     string
	Path       string // 文件存储的路径，- 表示标准输出
	Format     string // jsonl、csv或yaml
	BatchCount int
	Meta       bool
}

type EngineConfig struct {
	Host        string // native或colly
	WorkCount   int
	MinBodySize int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyFetcherType, "browser")
	v.SetDefault(keyFetcherTimeout, 5000)
	v.SetDefault(keyStorageType, "file")
	v.SetDefault(keyStoragePath, "quotes.jsonl")
	v.SetDefault(keyStorageBatch, 100)
	v.SetDefault(keyEngineHost, "native")
	v.SetDefault(keyEngineWorkers, 5)
}

/*
输入viper实例、配置文件路径和文件是否必须存在，输出配置和一个错误

配置文件不存在且不是必须时只使用默认值和命令行参数
*/
func LoadConfig(v *viper.Viper, path string, required bool) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

/*
输入配置和命令行指定的任务名，无输出

命令行指定了任务时只运行这些任务，配置文件中同名任务的设置被保留；没有任何任务时运行默认任务
*/
func SelectTasks(cfg *Config, names []string) {
	var selected []spider.TaskConfig
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tc := spider.TaskConfig{Name: name}
		for _, c := range cfg.Tasks {
			if c.Name == name {
				tc = c
				break
			}
		}
		selected = append(selected, tc)
	}
	if len(selected) > 0 {
		cfg.Tasks = selected
	}
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = []spider.TaskConfig{{Name: DefaultTask}}
	}
}
