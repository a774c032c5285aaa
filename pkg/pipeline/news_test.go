package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/state"
	"github.com/terra-graph/newsgraph/pkg/store"
	"github.com/terra-graph/newsgraph/pkg/store/memory"
)

type recordingPublisher struct {
	correlationIDs []string
}

func (p *recordingPublisher) PublishIngest(_ context.Context, correlationID string) error {
	p.correlationIDs = append(p.correlationIDs, correlationID)
	return nil
}

func newsServer(t *testing.T, total int, quotaLeft string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-key") == "" {
			t.Error("request without api-key")
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		number, _ := strconv.Atoi(r.URL.Query().Get("number"))

		var news []map[string]any
		for i := offset; i < total && i < offset+number; i++ {
			news = append(news, map[string]any{
				"id":           i + 1,
				"title":        fmt.Sprintf("Article %d", i+1),
				"text":         "Body text.",
				"url":          fmt.Sprintf("https://news.example/%d", i+1),
				"publish_date": "2026-08-31 12:00:00",
				"sentiment":    0.1,
			})
		}
		w.Header().Set(quotaHeader, quotaLeft)
		json.NewEncoder(w).Encode(map[string]any{
			"offset":    offset,
			"number":    len(news),
			"available": total,
			"news":      news,
		})
	}))
}

func newTestNewsPipeline(server *httptest.Server, st state.Store, articles store.ArticleStore, publisher IngestPublisher) *NewsPipeline {
	return NewNewsPipeline(NewsPipelineParams{
		Fetcher: NewFetcher(FetcherParams{
			Limiter:    rate.NewLimiter(rate.Inf, 1),
			State:      st,
			Namespace:  NewsNamespace,
			MaxTries:   1,
			RetryDelay: time.Millisecond,
		}),
		Articles:  articles,
		State:     st,
		Publisher: publisher,
		APIURL:    server.URL,
		APIKey:    "test-key",
		Sources:   []string{"news.example"},
	})
}

func TestNewsRunPaginatesAndInserts(t *testing.T) {
	server := newsServer(t, 230, "100")
	defer server.Close()

	st := state.NewMemoryStore()
	articles := memory.NewStore()
	publisher := &recordingPublisher{}
	p := newTestNewsPipeline(server, st, articles, publisher)

	next, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := articles.UnprocessedArticles(context.Background(), 1000)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	if len(stored) != 230 {
		t.Errorf("stored articles = %d, want 230 across 3 pages", len(stored))
	}
	if len(publisher.correlationIDs) != 1 || publisher.correlationIDs[0] == "" {
		t.Errorf("correlation ids = %v, want one", publisher.correlationIDs)
	}

	lastFetch, err := st.Get(context.Background(), NewsNamespace, "last_fetch")
	if err != nil || lastFetch == "" {
		t.Errorf("last_fetch = %q, err = %v", lastFetch, err)
	}
	if until := time.Until(next); until < 23*time.Hour || until > 24*time.Hour {
		t.Errorf("next run in %v, want about 24h", until)
	}
}

func TestNewsRunStopsOnExhaustedQuota(t *testing.T) {
	server := newsServer(t, 500, "0")
	defer server.Close()

	st := state.NewMemoryStore()
	articles := memory.NewStore()
	publisher := &recordingPublisher{}
	p := newTestNewsPipeline(server, st, articles, publisher)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := articles.UnprocessedArticles(context.Background(), 1000)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	// first page only, but what arrived is still stored and ingest triggered
	if len(stored) != 100 {
		t.Errorf("stored articles = %d, want the first page", len(stored))
	}
	if len(publisher.correlationIDs) != 1 {
		t.Errorf("ingest triggers = %d, want 1", len(publisher.correlationIDs))
	}
}

func TestNewsRunDeduplicatesRepeatedItems(t *testing.T) {
	// the server repeats item 1 on every page
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		news := []map[string]any{
			{"id": 1, "title": "Repeated", "text": "Body.", "url": "https://news.example/1", "publish_date": "2026-08-31 12:00:00"},
			{"id": calls + 1, "title": "Fresh", "text": "Body.", "url": "https://news.example/f", "publish_date": "2026-08-31 12:00:00"},
		}
		w.Header().Set(quotaHeader, "100")
		json.NewEncoder(w).Encode(map[string]any{
			"offset": 0, "number": 2, "available": 3, "news": news,
		})
	}))
	defer server.Close()

	st := state.NewMemoryStore()
	articles := memory.NewStore()
	p := newTestNewsPipeline(server, st, articles, &recordingPublisher{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, err := articles.UnprocessedArticles(context.Background(), 1000)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("stored articles = %d, want 3 distinct ids", len(stored))
	}
}

func TestNewsRunTerminatesWhenPagesRepeat(t *testing.T) {
	// the server serves the same two items on every page and claims far
	// more are available than it will ever deliver
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 10 {
			t.Error("pagination did not terminate")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		news := []map[string]any{
			{"id": 1, "title": "One", "text": "Body.", "url": "https://news.example/1", "publish_date": "2026-08-31 12:00:00"},
			{"id": 2, "title": "Two", "text": "Body.", "url": "https://news.example/2", "publish_date": "2026-08-31 12:00:00"},
		}
		w.Header().Set(quotaHeader, "100")
		json.NewEncoder(w).Encode(map[string]any{
			"offset": 0, "number": 2, "available": 50, "news": news,
		})
	}))
	defer server.Close()

	st := state.NewMemoryStore()
	articles := memory.NewStore()
	p := newTestNewsPipeline(server, st, articles, &recordingPublisher{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, err := articles.UnprocessedArticles(context.Background(), 1000)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored articles = %d, want 2 distinct ids", len(stored))
	}
	if calls != 2 {
		t.Errorf("api calls = %d, want 2 (stop on first page without new items)", calls)
	}
}

type failingArticleStore struct {
	*memory.Store
}

func (s *failingArticleStore) InsertArticles(context.Context, []common.Article) (int, error) {
	return 0, errors.New("connection reset")
}

func TestNewsRunFailedInsertKeepsWindowOpen(t *testing.T) {
	server := newsServer(t, 5, "100")
	defer server.Close()

	st := state.NewMemoryStore()
	publisher := &recordingPublisher{}
	p := newTestNewsPipeline(server, st, &failingArticleStore{memory.NewStore()}, publisher)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("run succeeded, want insert error")
	}
	if len(publisher.correlationIDs) != 0 {
		t.Errorf("ingest triggered after failed insert: %v", publisher.correlationIDs)
	}

	// the cursor must not advance past articles that were never stored
	lastFetch, err := st.Get(context.Background(), NewsNamespace, "last_fetch")
	if err != nil {
		t.Fatalf("get last_fetch: %v", err)
	}
	if lastFetch != "" {
		t.Errorf("last_fetch = %q, want unset after failed insert", lastFetch)
	}
}

type failingPublisher struct{}

func (failingPublisher) PublishIngest(context.Context, string) error {
	return errors.New("channel closed")
}

func TestNewsRunFailedPublishKeepsWindowOpen(t *testing.T) {
	server := newsServer(t, 5, "100")
	defer server.Close()

	st := state.NewMemoryStore()
	p := newTestNewsPipeline(server, st, memory.NewStore(), failingPublisher{})

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("run succeeded, want publish error")
	}
	lastFetch, err := st.Get(context.Background(), NewsNamespace, "last_fetch")
	if err != nil {
		t.Fatalf("get last_fetch: %v", err)
	}
	if lastFetch != "" {
		t.Errorf("last_fetch = %q, want unset after failed publish", lastFetch)
	}
}

func TestNewsRunSchedulesShortRetryOnFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	st := state.NewMemoryStore()
	p := newTestNewsPipeline(server, st, memory.NewStore(), &recordingPublisher{})

	next, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("run succeeded, want fetch error")
	}
	if until := time.Until(next); until <= 0 || until > time.Minute {
		t.Errorf("retry scheduled in %v, want about 60s", until)
	}

	// the window start is preserved for the retry
	lastFetch, err := st.Get(context.Background(), NewsNamespace, "last_fetch")
	if err != nil {
		t.Fatalf("get last_fetch: %v", err)
	}
	if lastFetch != "" {
		t.Errorf("last_fetch = %q, want unset after failed fetch", lastFetch)
	}
}

func TestNewsRunWithoutArticlesSkipsIngest(t *testing.T) {
	server := newsServer(t, 0, "100")
	defer server.Close()

	st := state.NewMemoryStore()
	publisher := &recordingPublisher{}
	p := newTestNewsPipeline(server, st, memory.NewStore(), publisher)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(publisher.correlationIDs) != 0 {
		t.Errorf("ingest triggered with no articles: %v", publisher.correlationIDs)
	}
}
