package cmd

import (
	"context"

	"github.com/dszqbsm/quotecrawler/cmd/crawl"
	"github.com/dszqbsm/quotecrawler/cmd/list"
	"github.com/dszqbsm/quotecrawler/version"
	"github.com/spf13/cobra"
)

// crawl子命令运行爬虫，list子命令打印预设任务，version子命令打印版本信息

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version.",
	Long:  "print version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.Fprint(cmd.OutOrStdout())
	},
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "quotecrawler",
		Short:        "crawl quotes.toscrape.com.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(crawl.CrawlCmd, list.ListCmd, versionCmd)
	return rootCmd
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
