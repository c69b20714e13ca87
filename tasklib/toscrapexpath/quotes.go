package toscrapexpath

// 用XPath爬取 quotes.toscrape.com 的名言，并沿分页链接继续爬取

import (
	"net/http"

	"github.com/dszqbsm/quotecrawler/spider"
)

const (
	Name     = "toscrape-xpath"
	StartURL = "http://quotes.toscrape.com/"
	RuleName = "parse"

	quoteXPath  = `//*[@class="quote"]`
	textXPath   = `span[@itemprop="text"]/text()`
	authorXPath = `span/*[@itemprop="author"]/text()`
	tagsXPath   = `div/a/text()`
	pagerCSS    = "ul.pager a"
)

// 每条名言输出的字段
var ItemFields = []string{"text", "author", "tags"}

/*
名言爬虫任务

根规则：从首页开始

parse：每个quote块输出一条记录，再把分页区域的所有链接交给parse继续解析
*/
var QuotesTask = &spider.Task{
	Options: spider.Options{Name: Name},
	Rule: spider.RuleTree{
		Root: func() ([]*spider.Request, error) {
			return []*spider.Request{{
				Url:      StartURL,
				Method:   http.MethodGet,
				RuleName: RuleName,
			}}, nil
		},
		Trunk: map[string]*spider.Rule{
			RuleName: {ItemFields: ItemFields, ParseFunc: ParseQuotes},
		},
	},
}

/*
输入一个上下文，输出解析结果和一个错误

text和author取第一个匹配的文本，未匹配时为nil；tags取全部匹配，未匹配时为空列表
*/
func ParseQuotes(ctx *spider.Context) (spider.ParseResult, error) {
	result := spider.ParseResult{}

	quotes, err := ctx.XPath(quoteXPath)
	if err != nil {
		return result, err
	}
	for _, q := range quotes {
		text, err := spider.XPathGet(q, textXPath)
		if err != nil {
			return result, err
		}
		author, err := spider.XPathGet(q, authorXPath)
		if err != nil {
			return result, err
		}
		tags, err := spider.XPathGetAll(q, tagsXPath)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, ctx.Output(map[string]interface{}{
			"text":   text,
			"author": author,
			"tags":   tags,
		}))
	}

	reqs, err := ctx.FollowCSS(RuleName, pagerCSS)
	if err != nil {
		return result, err
	}
	result.Requests = reqs

	return result, nil
}
