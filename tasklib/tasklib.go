package tasklib

import (
	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/dszqbsm/quotecrawler/tasklib/toscrapecss"
	"github.com/dszqbsm/quotecrawler/tasklib/toscrapejs"
	"github.com/dszqbsm/quotecrawler/tasklib/toscrapexpath"
)

func init() {
	spider.TaskStore.Add(toscrapexpath.QuotesTask)
	spider.TaskStore.Add(toscrapecss.QuotesTask)
	spider.TaskStore.AddJSTask(toscrapejs.QuotesJSTask)
}
