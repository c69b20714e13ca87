package tasklib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseWith(t *testing.T, name string, file string, pageURL string) ([]interface{}, []string) {
	t.Helper()
	task, ok := spider.TaskStore.Get(name)
	require.True(t, ok, name)

	roots, err := task.Rule.Root()
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "http://quotes.toscrape.com/", roots[0].Url)

	body, err := os.ReadFile(filepath.Join("toscrapexpath", "testdata", file))
	require.NoError(t, err)

	rule, ok := task.Rule.Trunk[roots[0].RuleName]
	require.True(t, ok)
	res, err := rule.ParseFunc(&spider.Context{
		Body: body,
		Req: &spider.Request{
			Task:     task,
			Url:      pageURL,
			Method:   "GET",
			RuleName: roots[0].RuleName,
		},
	})
	require.NoError(t, err)

	var recs []interface{}
	for _, item := range res.Items {
		cell := item.(*spider.DataCell)
		rec, err := cell.GetRecord()
		require.NoError(t, err)
		recs = append(recs, rec)
		assert.Equal(t, []string{"text", "author", "tags"}, cell.ItemFields())
	}
	var links []string
	for _, r := range res.Requests {
		links = append(links, r.Url)
	}
	return recs, links
}

func TestRegisteredTasks(t *testing.T) {
	assert.Equal(t, []string{"toscrape-css", "toscrape-js", "toscrape-xpath"}, spider.TaskStore.Names())
}

func TestVariantsAgree(t *testing.T) {
	pages := []struct {
		file string
		url  string
	}{
		{file: "page1.html", url: "http://quotes.toscrape.com/"},
		{file: "page2.html", url: "http://quotes.toscrape.com/page/2/"},
		{file: "page3.html", url: "http://quotes.toscrape.com/page/3/"},
	}
	for _, p := range pages {
		t.Run(p.file, func(t *testing.T) {
			wantRecs, wantLinks := parseWith(t, "toscrape-xpath", p.file, p.url)
			require.NotEmpty(t, wantRecs)
			require.NotEmpty(t, wantLinks)

			for _, name := range []string{"toscrape-css", "toscrape-js"} {
				recs, links := parseWith(t, name, p.file, p.url)
				assert.Equal(t, wantRecs, recs, name)
				assert.Equal(t, wantLinks, links, name)
			}
		})
	}
}

func TestExactClassAndDirectText(t *testing.T) {
	want := []interface{}{
		map[string]interface{}{
			"text":   "“Mixed ",
			"author": " Austen",
			"tags":   []string{"love "},
		},
	}
	for _, name := range []string{"toscrape-xpath", "toscrape-css", "toscrape-js"} {
		recs, links := parseWith(t, name, "page3.html", "http://quotes.toscrape.com/page/3/")
		assert.Equal(t, want, recs, name)
		assert.Equal(t, []string{"http://quotes.toscrape.com/page/4/"}, links, name)
	}
}
