package spider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/golang/groupcache/lru"
	"golang.org/x/net/html"
)

// 已编译选择器的缓存数量上限
const SelectorCacheMaxEntries = 128

// 编译后的XPath表达式与CSS选择器缓存，lru本身非并发安全，由锁保护
var selectorCache = struct {
	sync.Mutex
	xpath *lru.Cache
	css   *lru.Cache
}{
	xpath: lru.New(SelectorCacheMaxEntries),
	css:   lru.New(SelectorCacheMaxEntries),
}

func compileXPath(expr string) (*xpath.Expr, error) {
	selectorCache.Lock()
	defer selectorCache.Unlock()

	if v, ok := selectorCache.xpath.Get(expr); ok {
		return v.(*xpath.Expr), nil
	}
	exp, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", expr, err)
	}
	selectorCache.xpath.Add(expr, exp)
	return exp, nil
}

func compileCSS(sel string) (cascadia.Selector, error) {
	selectorCache.Lock()
	defer selectorCache.Unlock()

	if v, ok := selectorCache.css.Get(sel); ok {
		return v.(cascadia.Selector), nil
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile css %q: %w", sel, err)
	}
	selectorCache.css.Add(sel, s)
	return s, nil
}

// 以top为上下文节点执行XPath查询，按文档顺序返回所有匹配节点
func XPathNodes(top *html.Node, expr string) ([]*html.Node, error) {
	exp, err := compileXPath(expr)
	if err != nil {
		return nil, err
	}
	return htmlquery.QuerySelectorAll(top, exp), nil
}

/*
输入一个上下文节点和XPath表达式，输出第一个匹配结果的字符串和一个错误

未匹配时返回nil而不是空字符串，用于区分"字段缺失"和"字段为空"；文本内容原样返回，不做裁剪
*/
func XPathGet(top *html.Node, expr string) (interface{}, error) {
	nodes, err := XPathNodes(top, expr)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodeString(nodes[0]), nil
}

// 返回所有匹配结果的字符串，未匹配时返回空切片而不是nil
func XPathGetAll(top *html.Node, expr string) ([]string, error) {
	nodes, err := XPathNodes(top, expr)
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, nodeString(n))
	}
	return res, nil
}

// 文本节点返回其内容，元素节点返回内部文本
func nodeString(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	return htmlquery.InnerText(n)
}

// 以top为根执行CSS选择，按文档顺序返回所有匹配的元素
func CSSNodes(top *html.Node, sel string) ([]*html.Node, error) {
	s, err := compileCSS(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(top), nil
}

/*
输入文档根节点、CSS选择器和页面URL，输出绝对链接列表和一个错误

选出匹配的元素并取其href属性，解析成绝对地址，同时去掉片段部分；没有href的元素被跳过。
文档中有<base href>时以它（相对页面URL解析后）为基准，否则以页面URL为基准
*/
func CSSLinks(top *html.Node, sel string, pageURL string) ([]string, error) {
	nodes, err := CSSNodes(top, sel)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	base = documentBase(top, base)

	links := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !htmlquery.ExistsAttr(n, "href") {
			continue
		}
		href := strings.TrimSpace(htmlquery.SelectAttr(n, "href"))
		u, err := base.Parse(href)
		if err != nil {
			continue
		}
		u.Fragment = ""
		links = append(links, u.String())
	}
	return links, nil
}

// 第一个<base href>相对页面地址解析后的结果，没有或无法解析时返回页面地址
func documentBase(top *html.Node, page *url.URL) *url.URL {
	nodes, err := XPathNodes(top, "//base[@href]")
	if err != nil || len(nodes) == 0 {
		return page
	}
	href := strings.TrimSpace(htmlquery.SelectAttr(nodes[0], "href"))
	u, err := page.Parse(href)
	if err != nil {
		return page
	}
	return u
}

// 描述一条记录中的一个字段
type FieldSelector struct {
	Name  string // 字段名
	XPath string // 相对于条目节点的XPath
	All   bool   // 为true时取全部匹配，结果为字符串切片
}

// 声明式的选择器规则：条目XPath + 字段列表 + 跟随链接
type SelectorRule struct {
	Item       string          // 条目节点的XPath
	Fields     []FieldSelector // 字段
	Follow     []string        // 跟随链接的CSS选择器
	FollowRule string          // 子请求使用的规则名
}

var ErrEmptyFields = errors.New("empty field list")

/*
输入形如 "text=span/text();tags[]=div/a/text()" 的字段描述，输出字段列表和一个错误

字段之间以分号分隔，名称与XPath以第一个等号分隔，名称带[]后缀表示取全部匹配
*/
func ParseFields(desc string) ([]FieldSelector, error) {
	var fields []FieldSelector
	for _, part := range strings.Split(desc, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, expr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("field %q: missing '='", part)
		}
		f := FieldSelector{Name: strings.TrimSpace(name), XPath: strings.TrimSpace(expr)}
		if strings.HasSuffix(f.Name, "[]") {
			f.Name = strings.TrimSuffix(f.Name, "[]")
			f.All = true
		}
		if f.Name == "" || f.XPath == "" {
			return nil, fmt.Errorf("field %q: empty name or xpath", part)
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyFields
	}
	return fields, nil
}

// 规则中字段名的顺序，用作Rule.ItemFields
func (s *SelectorRule) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

/*
输入一个上下文，输出解析结果和一个错误

对每个条目节点按字段提取数据，单值字段未匹配时为nil，多值字段未匹配时为空切片；再根据Follow选择器生成子请求，子请求使用FollowRule规则，FollowRule为空时沿用当前请求的规则
*/
func (s *SelectorRule) Parse(ctx *Context) (ParseResult, error) {
	result := ParseResult{}

	items, err := ctx.XPath(s.Item)
	if err != nil {
		return result, err
	}
	for _, item := range items {
		data := make(map[string]interface{}, len(s.Fields))
		for _, f := range s.Fields {
			if f.All {
				v, err := XPathGetAll(item, f.XPath)
				if err != nil {
					return result, err
				}
				data[f.Name] = v
				continue
			}
			v, err := XPathGet(item, f.XPath)
			if err != nil {
				return result, err
			}
			data[f.Name] = v
		}
		result.Items = append(result.Items, ctx.Output(data))
	}

	ruleName := s.FollowRule
	if ruleName == "" {
		ruleName = ctx.Req.RuleName
	}
	for _, css := range s.Follow {
		reqs, err := ctx.FollowCSS(ruleName, css)
		if err != nil {
			return result, err
		}
		result.Requests = append(result.Requests, reqs...)
	}

	return result, nil
}
