package spider

import (
	"bytes"
	"fmt"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// 上下文结构体：将响应内容和当前请求封装在一起，传递给解析函数
type Context struct {
	Body []byte   // 响应内容的字节流
	Req  *Request // 当前请求

	doc *html.Node
}

// 依据规则名称从当前请求任务规则树中获取对应的规则
func (c *Context) GetRule(ruleName string) *Rule {
	return c.Req.Task.Rule.Trunk[ruleName]
}

/*
输入一个数据，输出一个数据单元

该方法用于创建一个数据单元，将数据和请求的相关信息（任务名、规则名、URL、时间）封装到数据单元中
*/
func (c *Context) Output(data interface{}) *DataCell {
	res := &DataCell{
		Task: c.Req.Task,
	}
	res.Data = make(map[string]interface{})
	res.Data["Task"] = c.Req.Task.Name
	res.Data["Rule"] = c.Req.RuleName
	res.Data["Data"] = data
	res.Data["Url"] = c.Req.Url
	res.Data["Time"] = time.Now().Format("2006-01-02 15:04:05")

	return res
}

/*
无输入，输出解析后的html文档根节点和一个错误

同一个响应只解析一次，之后的调用直接返回缓存的文档
*/
func (c *Context) HTML() (*html.Node, error) {
	if c.doc != nil {
		return c.doc, nil
	}
	doc, err := htmlquery.Parse(bytes.NewReader(c.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", c.Req.Url, err)
	}
	c.doc = doc
	return doc, nil
}

// 在整个文档上执行XPath查询，返回匹配的节点
func (c *Context) XPath(expr string) ([]*html.Node, error) {
	doc, err := c.HTML()
	if err != nil {
		return nil, err
	}
	return XPathNodes(doc, expr)
}

/*
输入一个规则名称和CSS选择器，输出新请求列表和一个错误

该方法对应"跟随链接"：选出所有匹配CSS选择器的元素，取其href属性并基于当前请求的URL解析为绝对地址，生成使用指定规则解析的子请求，没有href的元素会被忽略
*/
func (c *Context) FollowCSS(ruleName string, css string) ([]*Request, error) {
	doc, err := c.HTML()
	if err != nil {
		return nil, err
	}
	links, err := CSSLinks(doc, css, c.Req.Url)
	if err != nil {
		return nil, err
	}

	reqs := make([]*Request, 0, len(links))
	for _, u := range links {
		reqs = append(reqs, &Request{
			Method:   "GET",
			Task:     c.Req.Task,
			Url:      u,
			Depth:    c.Req.Depth + 1,
			RuleName: ruleName,
		})
	}
	return reqs, nil
}

/*
输入子请求使用的规则名、条目XPath、字段描述和跟随链接的CSS选择器，输出解析结果

供js脚本调用的声明式解析入口，字段描述形如 "text=span/text();tags[]=div/a/text()"，带[]后缀的字段取全部匹配，解析出错时返回空结果并记录错误
*/
func (c *Context) ParseSelectors(ruleName string, item string, fields string, follow string) ParseResult {
	fs, err := ParseFields(fields)
	if err != nil {
		c.Req.Task.Logger().Error("parse field list failed", zap.Error(err))
		return ParseResult{}
	}
	rule := &SelectorRule{
		Item:       item,
		Fields:     fs,
		FollowRule: ruleName,
	}
	if follow != "" {
		rule.Follow = []string{follow}
	}
	result, err := rule.Parse(c)
	if err != nil {
		c.Req.Task.Logger().Error("parse selectors failed",
			zap.Error(err),
			zap.String("url", c.Req.Url),
		)
		return ParseResult{}
	}
	return result
}
