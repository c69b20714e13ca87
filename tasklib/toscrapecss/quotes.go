package toscrapecss

// 与toscrape-xpath输出相同的记录，改用goquery的CSS选择器实现

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/dszqbsm/quotecrawler/spider"
)

const (
	Name     = "toscrape-css"
	StartURL = "http://quotes.toscrape.com/"
	RuleName = "parse"
)

var ItemFields = []string{"text", "author", "tags"}

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

func isText(_ int, s *goquery.Selection) bool {
	return goquery.NodeName(s) == "#text"
}

// 选择结果中各元素的直接文本子节点，按文档顺序
func texts(s *goquery.Selection) []string {
	nodes := s.Contents().FilterFunction(isText).Nodes
	res := make([]string, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, n.Data)
	}
	return res
}

// 第一个直接文本子节点，没有时返回nil
func first(s *goquery.Selection) interface{} {
	t := s.Contents().FilterFunction(isText)
	if t.Length() == 0 {
		return nil
	}
	return t.Nodes[0].Data
}

/*
输入一个上下文，输出解析结果和一个错误

[class="quote"] 对应条目（class必须恰好为quote），span[itemprop=text] 为正文，span > [itemprop=author] 为作者，div > a 为标签；
字段只取元素的直接文本节点，不含子元素中的文本
*/
func ParseQuotes(ctx *spider.Context) (spider.ParseResult, error) {
	result := spider.ParseResult{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(ctx.Body))
	if err != nil {
		return result, fmt.Errorf("parse html %s: %w", ctx.Req.Url, err)
	}

	doc.Find(`[class="quote"]`).Each(func(_ int, q *goquery.Selection) {
		result.Items = append(result.Items, ctx.Output(map[string]interface{}{
			"text":   first(q.ChildrenFiltered(`span[itemprop="text"]`)),
			"author": first(q.ChildrenFiltered("span").ChildrenFiltered(`[itemprop="author"]`)),
			"tags":   texts(q.ChildrenFiltered("div").ChildrenFiltered("a")),
		}))
	})

	reqs, err := ctx.FollowCSS(RuleName, "ul.pager a")
	if err != nil {
		return result, err
	}
	result.Requests = reqs

	return result, nil
}
