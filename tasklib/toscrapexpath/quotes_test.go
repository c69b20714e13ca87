package toscrapexpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, file string, pageURL string) spider.ParseResult {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", file))
	require.NoError(t, err)

	ctx := &spider.Context{
		Body: body,
		Req: &spider.Request{
			Task:     QuotesTask,
			Url:      pageURL,
			Method:   "GET",
			RuleName: RuleName,
		},
	}
	res, err := QuotesTask.Rule.Trunk[RuleName].ParseFunc(ctx)
	require.NoError(t, err)
	return res
}

func records(t *testing.T, res spider.ParseResult) []map[string]interface{} {
	t.Helper()
	var recs []map[string]interface{}
	for _, item := range res.Items {
		cell, ok := item.(*spider.DataCell)
		require.True(t, ok)
		rec, err := cell.GetRecord()
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func TestParseQuotes(t *testing.T) {
	res := parseFixture(t, "page1.html", StartURL)

	assert.Equal(t, []map[string]interface{}{
		{
			"text":   "“The world as we have created it is a process of our thinking. It cannot be changed without changing our thinking.”",
			"author": "Albert Einstein",
			"tags":   []string{"change", "deep-thoughts", "thinking", "world"},
		},
		{
			"text":   "“Try not to become a man of success. Rather become a man of value.”",
			"author": nil,
			"tags":   []string{},
		},
	}, records(t, res))

	require.Len(t, res.Requests, 1)
	next := res.Requests[0]
	assert.Equal(t, "http://quotes.toscrape.com/page/2/", next.Url)
	assert.Equal(t, RuleName, next.RuleName)
	assert.Equal(t, 1, next.Depth)
	assert.Same(t, QuotesTask, next.Task)

	cell := res.Items[0].(*spider.DataCell)
	assert.Equal(t, Name, cell.Data["Task"])
	assert.Equal(t, StartURL, cell.Data["Url"])
	assert.Equal(t, ItemFields, cell.ItemFields())
}

func TestParseQuotesLastPage(t *testing.T) {
	res := parseFixture(t, "page2.html", "http://quotes.toscrape.com/page/2/")

	recs := records(t, res)
	require.Len(t, recs, 1)
	assert.Equal(t, "J.K. Rowling", recs[0]["author"])

	// 没有href的链接被忽略，上一页链接指回首页
	require.Len(t, res.Requests, 1)
	assert.Equal(t, StartURL, res.Requests[0].Url)
}

func TestParseQuotesEmptyPage(t *testing.T) {
	ctx := &spider.Context{
		Body: []byte(`<html><body><p>nothing here</p></body></html>`),
		Req:  &spider.Request{Task: QuotesTask, Url: StartURL, RuleName: RuleName},
	}
	res, err := ParseQuotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Requests)
}

func TestRoot(t *testing.T) {
	reqs, err := QuotesTask.Rule.Root()
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, StartURL, reqs[0].Url)
	assert.Equal(t, RuleName, reqs[0].RuleName)
}
