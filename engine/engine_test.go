package engine

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

const pageTpl = `<html><head><meta charset="UTF-8"></head><body>
<div class="quote"><span itemprop="text">%s</span></div>
<ul class="pager">%s</ul>
</body></html>`

type memStorage struct {
	mu      sync.Mutex
	cells   []*spider.DataCell
	flushed int
}

func (m *memStorage) Save(datas ...*spider.DataCell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells = append(m.cells, datas...)
	return nil
}

func (m *memStorage) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

func (m *memStorage) texts(t *testing.T) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []string
	for _, c := range m.cells {
		rec, err := c.GetRecord()
		require.NoError(t, err)
		res = append(res, rec["text"].(string))
	}
	sort.Strings(res)
	return res
}

func page(text string, links ...string) string {
	var pager string
	for _, l := range links {
		pager += fmt.Sprintf(`<li class="next"><a href="%s">Next</a></li>`, l)
	}
	return fmt.Sprintf(pageTpl, text, pager)
}

func newTestTask(t *testing.T, name string, root string, store spider.Storage, opts ...spider.Option) *spider.Task {
	t.Helper()
	rule := &spider.SelectorRule{
		Item:   `//*[@class="quote"]`,
		Fields: []spider.FieldSelector{{Name: "text", XPath: `span[@itemprop="text"]/text()`}},
		Follow: []string{"ul.pager a"},
	}
	opts = append([]spider.Option{
		spider.WithName(name),
		spider.WithStorage(store),
		spider.WithTimeout(2 * time.Second),
	}, opts...)
	task := spider.NewTask(opts...)
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

func runEngine(t *testing.T, opts ...Option) *Crawler {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e := NewEngine(append([]Option{
		WithFetcher(spider.NewFetchService(spider.BaseFetchType)),
		WithWorkCount(3),
	}, opts...)...)
	require.NoError(t, e.Run(ctx))
	return e
}

func TestCrawlerFollowsPagerAndDedups(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, page("first", "/page/2/"))
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, page("second", "/", "/page/2/#top"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "dedup", srv.URL+"/", store)
	e := runEngine(t, WithSeeds([]*spider.Task{task}))

	assert.Equal(t, []string{"first", "second"}, store.texts(t))
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, 2, e.reqRepository.VisitedCount())
	assert.Equal(t, 1, store.flushed)
}

func TestCrawlerRetriesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, page("recovered"))
	}))
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "retry", srv.URL+"/", store)
	runEngine(t, WithSeeds([]*spider.Task{task}))

	assert.Equal(t, []string{"recovered"}, store.texts(t))
	assert.EqualValues(t, 2, hits.Load())
}

func TestCrawlerDropsAfterSecondFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "broken", srv.URL+"/", store)
	runEngine(t, WithSeeds([]*spider.Task{task}))

	assert.Empty(t, store.texts(t))
	assert.EqualValues(t, 2, hits.Load())
}

func TestCrawlerMaxDepth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("depth0", "/1/"))
	})
	mux.HandleFunc("/1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("depth1", "/2/"))
	})
	mux.HandleFunc("/2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("depth2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "depth", srv.URL+"/", store, spider.WithMaxDepth(1))
	runEngine(t, WithSeeds([]*spider.Task{task}))

	assert.Equal(t, []string{"depth0", "depth1"}, store.texts(t))
}

func TestCrawlerMinBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("tiny"))
	}))
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "tiny", srv.URL+"/", store)
	runEngine(t, WithSeeds([]*spider.Task{task}), WithMinBodySize(1<<20))

	assert.Empty(t, store.texts(t))
}

func TestCrawlerURLOverride(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("root"))
	})
	mux.HandleFunc("/mirror/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("mirror"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "override", srv.URL+"/", store, spider.WithURL(srv.URL+"/mirror/"))
	runEngine(t, WithSeeds([]*spider.Task{task}))

	assert.Equal(t, []string{"mirror"}, store.texts(t))
}

func TestCrawlerDefaultStorageAndUnknownSeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("default"))
	}))
	defer srv.Close()

	store := &memStorage{}
	task := newTestTask(t, "default-storage", srv.URL+"/", nil)
	unknown := spider.NewTask(spider.WithName("no-such-task"))
	runEngine(t, WithSeeds([]*spider.Task{unknown, task}), WithStorage(store))

	assert.Equal(t, []string{"default"}, store.texts(t))
	assert.Same(t, store, task.Storage)
	assert.Equal(t, 1, store.flushed)
}

func TestCrawlerNoSeeds(t *testing.T) {
	store := &memStorage{}
	e := NewEngine(WithStorage(store))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, store.flushed)
}

func TestCrawlerCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("never"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStorage{}
	task := newTestTask(t, "canceled", srv.URL+"/", store)
	e := NewEngine(
		WithFetcher(spider.NewFetchService(spider.BaseFetchType)),
		WithSeeds([]*spider.Task{task}),
	)
	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.flushed)
}

func TestSchedulePriority(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSchedule()
	go s.Schedule(ctx)

	s.Push(
		&spider.Request{Url: "a"},
		&spider.Request{Url: "b"},
		&spider.Request{Url: "p1", Priority: 1},
		&spider.Request{Url: "p2", Priority: 5},
	)

	var got []string
	for i := 0; i < 4; i++ {
		r, ok := s.Pull(ctx)
		require.True(t, ok)
		got = append(got, r.Url)
	}
	assert.Equal(t, []string{"p1", "p2", "a", "b"}, got)

	cancel()
	_, ok := s.Pull(ctx)
	assert.False(t, ok)
}
