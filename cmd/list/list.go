package list

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dszqbsm/quotecrawler/spider"
	_ "github.com/dszqbsm/quotecrawler/tasklib"
	"github.com/spf13/cobra"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "list preset tasks.",
	Long:  "list preset tasks with their rules and item fields.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		Print(cmd.OutOrStdout())
	},
}

/*
输入一个写入器，无输出

按任务名排序打印任务仓库中的每个任务，以及任务下每条规则的字段列表
*/
func Print(w io.Writer) {
	for _, name := range spider.TaskStore.Names() {
		task, _ := spider.TaskStore.Get(name)
		fmt.Fprintln(w, name)

		rules := make([]string, 0, len(task.Rule.Trunk))
		for r := range task.Rule.Trunk {
			rules = append(rules, r)
		}
		sort.Strings(rules)
		for _, r := range rules {
			fields := task.Rule.Trunk[r].ItemFields
			fmt.Fprintf(w, "  %s: %s\n", r, strings.Join(fields, ", "))
		}
	}
}
