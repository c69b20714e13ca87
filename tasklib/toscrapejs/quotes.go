package toscrapejs

// 由js脚本描述的名言爬虫，解析逻辑交给ctx.ParseSelectors的声明式选择器

import (
	"github.com/dszqbsm/quotecrawler/spider"
)

const Name = "toscrape-js"

var QuotesJSTask = &spider.TaskModle{
	Name: Name,
	Root: `
		var arr = new Array();
		arr.push({
			Url: "http://quotes.toscrape.com/",
			RuleName: "parse",
			Method: "GET",
		});
		AddJsReq(arr);
	`,
	Rules: []spider.RuleModle{
		{
			Name:       "parse",
			ItemFields: []string{"text", "author", "tags"},
			ParseFunc: `
			ctx.ParseSelectors(
				"parse",
				'//*[@class="quote"]',
				'text=span[@itemprop="text"]/text();author=span/*[@itemprop="author"]/text();tags[]=div/a/text()',
				"ul.pager a"
			);
			`,
		},
	},
}
