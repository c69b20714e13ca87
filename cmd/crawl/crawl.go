package crawl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dszqbsm/quotecrawler/collyhost"
	"github.com/dszqbsm/quotecrawler/engine"
	"github.com/dszqbsm/quotecrawler/limiter"
	"github.com/dszqbsm/quotecrawler/log"
	"github.com/dszqbsm/quotecrawler/proxy"
	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/dszqbsm/quotecrawler/sqldb"
	"github.com/dszqbsm/quotecrawler/storage/filestorage"
	"github.com/dszqbsm/quotecrawler/storage/sqlstorage"
	_ "github.com/dszqbsm/quotecrawler/tasklib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var CrawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "crawl quotes and export them.",
	Long:  "crawl quotes with the configured tasks and write the records to the configured storage.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		return Run(cmd.Context(), cfg)
	},
}

var v = viper.New()

func init() {
	flags := CrawlCmd.Flags()
	flags.String("config", "config.toml", "config file")
	flags.StringSlice("task", nil, "tasks to run, overrides the Tasks in config")
	flags.String("host", "", "crawler host: native or colly")
	flags.StringP("output", "o", "", "write records to this file, the format follows the extension")
	flags.String("log-level", "", "log level")

	_ = v.BindPFlag(keyEngineHost, flags.Lookup("host"))
	_ = v.BindPFlag(keyStoragePath, flags.Lookup("output"))
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
}

func configFromFlags(cmd *cobra.Command) (*Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if flags.Changed("output") {
		out, _ := flags.GetString("output")
		applyOutput(v, out)
	}
	cfg, err := LoadConfig(v, path, flags.Changed("config"))
	if err != nil {
		return nil, err
	}
	names, _ := flags.GetStringSlice("task")
	SelectTasks(cfg, names)
	return cfg, nil
}

// 命令行指定输出文件时改用文件存储，格式跟随扩展名，覆盖配置文件中的format
func applyOutput(v *viper.Viper, path string) {
	v.Set(keyStorageType, "file")
	v.Set(keyStoragePath, path)
	v.Set(keyStorageFormat, filestorage.FormatFromPath(path))
}

// 记录写到标准输出时日志改写标准错误，避免两者混在一起
func consoleWriter(cfg StorageConfig) zapcore.WriteSyncer {
	if (cfg.Type == "file" || cfg.Type == "") && cfg.Path == "-" {
		return os.Stderr
	}
	return os.Stdout
}

/*
输入一个上下文和配置，输出一个错误

初始化日志、采集器和存储，把任务配置解析为种子任务，交给选定的爬虫宿主运行
*/
func Run(ctx context.Context, cfg *Config) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, logCloser, err := log.Setup(cfg.LogLevel, cfg.LogFile, consoleWriter(cfg.Storage))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, logCloser.Close())
	}()
	zap.ReplaceGlobals(logger)
	logger.Info("log init end")

	p, err := proxy.FromList(strings.Join(cfg.Fetcher.Proxy, ","))
	if err != nil {
		logger.Error("RoundRobinProxySwitcher failed", zap.Error(err))
		return err
	}
	f := spider.NewFetchService(spider.ParseFetchType(cfg.Fetcher.Type))

	storage, storageCloser, err := NewStorage(cfg.Storage, logger)
	if err != nil {
		logger.Error("create storage failed", zap.Error(err))
		return err
	}
	defer func() {
		err = multierr.Append(err, storageCloser.Close())
	}()

	seeds := ParseTaskConfig(logger, f, storage, cfg.Fetcher, p, cfg.Tasks)
	logger.Info("start crawl",
		zap.String("host", cfg.Engine.Host),
		zap.Int("tasks", len(seeds)),
	)

	switch cfg.Engine.Host {
	case "colly":
		h := collyhost.New(
			collyhost.WithLogger(logger.Named("colly")),
			collyhost.WithWorkCount(cfg.Engine.WorkCount),
			collyhost.WithMinBodySize(cfg.Engine.MinBodySize),
			collyhost.WithSeeds(seeds),
			collyhost.WithStorage(storage),
		)
		return h.Run(ctx)
	case "native", "":
		e := engine.NewEngine(
			engine.WithFetcher(f),
			engine.WithLogger(logger.Named("engine")),
			engine.WithWorkCount(cfg.Engine.WorkCount),
			engine.WithMinBodySize(cfg.Engine.MinBodySize),
			engine.WithSeeds(seeds),
			engine.WithStorage(storage),
			engine.WithScheduler(engine.NewSchedule()),
		)
		return e.Run(ctx)
	default:
		return fmt.Errorf("unknown crawler host %q", cfg.Engine.Host)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

/*
输入存储配置和日志器，输出存储、用于收尾的Closer和一个错误

type为none时不创建存储，记录只写日志；文件路径为 - 时写标准输出
*/
func NewStorage(cfg StorageConfig, logger *zap.Logger) (spider.Storage, io.Closer, error) {
	switch cfg.Type {
	case "none":
		return nil, nopCloser{}, nil
	case "sql", sqldb.DriverMySQL, sqldb.DriverSQLite:
		driver := cfg.Driver
		if cfg.Type != "sql" {
			driver = cfg.Type
		}
		s, err := sqlstorage.New(
			sqlstorage.WithSqlURL(cfg.SQLURL),
			sqlstorage.WithDriver(driver),
			sqlstorage.WithLogger(logger.Named("sqlDB")),
			sqlstorage.WithBatchCount(cfg.BatchCount),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "file", "":
		opts := []filestorage.Option{
			filestorage.WithFormat(cfg.Format),
			filestorage.WithMeta(cfg.Meta),
			filestorage.WithLogger(logger.Named("feed")),
		}
		if cfg.Path == "-" {
			// 隐藏Close，避免关闭标准输出
			s, err := filestorage.New(struct{ io.Writer }{os.Stdout}, opts...)
			if err != nil {
				return nil, nil, err
			}
			return s, s, nil
		}
		s, err := filestorage.Open(cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

/*
输入日志器、默认采集器、存储、采集器配置、代理和任务配置，输出种子任务列表

为每个任务配置设置超时、代理、限速等属性；任务单独指定采集器类型时使用对应的采集器
*/
func ParseTaskConfig(logger *zap.Logger, f spider.Fetcher, s spider.Storage, fcfg FetcherConfig, p proxy.ProxyFunc, cfgs []spider.TaskConfig) []*spider.Task {
	tasks := make([]*spider.Task, 0, len(cfgs))
	for _, cfg := range cfgs {
		t := spider.NewTask(
			spider.WithName(cfg.Name),
			spider.WithURL(cfg.URL),
			spider.WithReload(cfg.Reload),
			spider.WithCookie(cfg.Cookie),
			spider.WithLogger(logger.With(zap.String("task", cfg.Name))),
			spider.WithStorage(s),
			spider.WithFetcher(f),
			spider.WithProxy(p),
		)
		if fcfg.Timeout > 0 {
			t.Timeout = time.Duration(fcfg.Timeout) * time.Millisecond
		}
		if cfg.WaitTime > 0 {
			t.WaitTime = cfg.WaitTime
		}
		if cfg.MaxDepth > 0 {
			t.MaxDepth = cfg.MaxDepth
		}

		if len(cfg.Limits) > 0 {
			limits := make([]limiter.RateLimiter, 0, len(cfg.Limits))
			for _, lcfg := range cfg.Limits {
				l := limiter.NewTokenLimiter(lcfg.EventCount, time.Duration(lcfg.EventDur)*time.Second, lcfg.Bucket)
				limits = append(limits, l)
			}
			t.Limit = limiter.Multi(limits...)
		}

		if cfg.Fetcher != "" {
			t.Fetcher = spider.NewFetchService(spider.ParseFetchType(cfg.Fetcher))
		}
		tasks = append(tasks, t)
	}
	return tasks
}
