package collyhost

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu      sync.Mutex
	texts   []string
	flushed int
}

func (m *memStorage) Save(datas ...*spider.DataCell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range datas {
		rec, err := d.GetRecord()
		if err != nil {
			return err
		}
		m.texts = append(m.texts, rec["text"].(string))
	}
	return nil
}

func (m *memStorage) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

func (m *memStorage) sorted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := append([]string(nil), m.texts...)
	sort.Strings(res)
	return res
}

func page(text string, links ...string) string {
	var pager string
	for _, l := range links {
		pager += fmt.Sprintf(`<li><a href="%s">link</a></li>`, l)
	}
	return fmt.Sprintf(`<html><head><meta charset="UTF-8"></head><body>
<div class="quote"><span itemprop="text">%s</span></div>
<ul class="pager">%s</ul></body></html>`, text, pager)
}

func newTask(root string, opts ...spider.Option) *spider.Task {
	rule := &spider.SelectorRule{
		Item:   `//*[@class="quote"]`,
		Fields: []spider.FieldSelector{{Name: "text", XPath: `span[@itemprop="text"]/text()`}},
		Follow: []string{"ul.pager a"},
	}
	task := spider.NewTask(append([]spider.Option{spider.WithName("colly"), spider.WithTimeout(2 * time.Second)}, opts...)...)
	task.Rule = spider.RuleTree{
		Root: func() ([]*spider.Request, error) {
			return []*spider.Request{{Url: root, RuleName: "parse"}}, nil
		},
		Trunk: map[string]*spider.Rule{
			"parse": {ItemFields: rule.FieldNames(), ParseFunc: rule.Parse},
		},
	}
	return task
}

func TestHostCrawl(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, page("first", "/page/2/", "/page/3/"))
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, page("second", "/", "/page/3/"))
	})
	mux.HandleFunc("/page/3/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, page("third", "/page/2/"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStorage{}
	h := New(
		WithSeeds([]*spider.Task{newTask(srv.URL + "/")}),
		WithStorage(store),
		WithWorkCount(2),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Run(ctx))

	assert.Equal(t, []string{"first", "second", "third"}, store.sorted())
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, 1, store.flushed)
}

func TestHostRetryAndMaxDepth(t *testing.T) {
	var rootHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if rootHits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, page("root", "/1/"))
	})
	mux.HandleFunc("/1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("one", "/2/"))
	})
	mux.HandleFunc("/2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("two"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStorage{}
	h := New(
		WithSeeds([]*spider.Task{newTask(srv.URL+"/", spider.WithStorage(store), spider.WithMaxDepth(1))}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Run(ctx))

	assert.Equal(t, []string{"one", "root"}, store.sorted())
	assert.EqualValues(t, 2, rootHits.Load())
}

func TestHostUnknownRule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("lost"))
	}))
	defer srv.Close()

	store := &memStorage{}
	task := newTask(srv.URL + "/")
	task.Rule.Trunk = map[string]*spider.Rule{}
	h := New(WithSeeds([]*spider.Task{task}), WithStorage(store))

	require.NoError(t, h.Run(context.Background()))
	assert.Empty(t, store.sorted())
}

func TestHostHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		agents  []string
		cookies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		fmt.Fprint(w, page("quote"))
	}))
	defer srv.Close()

	store := &memStorage{}
	h := New(
		WithSeeds([]*spider.Task{newTask(srv.URL+"/", spider.WithCookie("session=1"))}),
		WithStorage(store),
	)
	require.NoError(t, h.Run(context.Background()))

	require.Len(t, agents, 1)
	assert.NotEmpty(t, agents[0])
	assert.NotContains(t, agents[0], "gocolly")
	assert.Equal(t, []string{"session=1"}, cookies)
}
