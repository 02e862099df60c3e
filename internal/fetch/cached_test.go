package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/db"
)

// memoryStore is an in-memory PageStore.
type memoryStore struct {
	mu       sync.Mutex
	pages    map[string]*db.CrawledPage
	skip     map[string]string
	failures map[string]int
	upserts  int
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		pages:    map[string]*db.CrawledPage{},
		skip:     map[string]string{},
		failures: map[string]int{},
	}
}

func (m *memoryStore) ShouldSkipURL(_ context.Context, pageURL string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.skip[pageURL]
	return ok, reason, nil
}

func (m *memoryStore) GetFreshCrawledPage(_ context.Context, pageURL string, maxAge time.Duration, requireRendered bool) (*db.CrawledPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageURL]
	if !ok || !p.IsFresh(maxAge) || (requireRendered && !p.Rendered) {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) UpsertCrawledPage(_ context.Context, page *db.CrawledPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts++
	page.ID = uuid.New()
	page.FetchedAt = time.Now()
	cp := *page
	m.pages[page.URL] = &cp
	return nil
}

func (m *memoryStore) RecordFailedFetch(_ context.Context, pageURL string, httpStatus int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pageURL] = httpStatus
	return nil
}

func (m *memoryStore) ExpireCrawledPage(_ context.Context, pageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[pageURL]; ok {
		past := time.Now().Add(-time.Second)
		p.ExpiresAt = &past
	}
	return nil
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestCachedFetcher_CachesSuccessfulFetch(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<h1>Engineer</h1>")
	store := newMemoryStore()
	f := NewCachedFetcher(store, nil)

	first, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.NotEqual(t, uuid.Nil, first.PageID)

	second, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "<h1>Engineer</h1>", second.HTML)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, int32(1), hits.Load())

	stored := store.pages[server.URL]
	require.NotNil(t, stored.Host)
	assert.Equal(t, "127.0.0.1", *stored.Host)
}

func TestCachedFetcher_SkipCache(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>x</p>")
	f := NewCachedFetcher(newMemoryStore(), &CachedFetcherConfig{SkipCache: true})

	for i := 0; i < 2; i++ {
		res, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.False(t, res.FromCache)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestCachedFetcher_SkippedURL(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>x</p>")
	store := newMemoryStore()
	store.skip[server.URL] = "retry backoff"
	f := NewCachedFetcher(store, nil)

	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "retry backoff")
	assert.Zero(t, hits.Load())
}

func TestCachedFetcher_RecordsFailures(t *testing.T) {
	server, _ := countingServer(t, http.StatusGone, "")
	store := newMemoryStore()
	f := NewCachedFetcher(store, nil)

	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusGone, store.failures[server.URL])
	assert.Zero(t, store.upserts)
}

func TestCachedFetcher_StoreFailureStillReturnsContent(t *testing.T) {
	server, _ := countingServer(t, http.StatusOK, "<p>ok</p>")
	store := newMemoryStore()
	store.err = errors.New("disk full")
	f := NewCachedFetcher(store, nil)

	res, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", res.HTML)
	assert.Equal(t, uuid.Nil, res.PageID)
}

func TestCachedFetcher_NilStore(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>x</p>")
	f := NewCachedFetcher(nil, nil)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())

	cached, err := f.Cached(context.Background(), server.URL, false)
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, f.InvalidateCache(context.Background(), server.URL))
}

func TestCachedFetcher_RenderedLookup(t *testing.T) {
	store := newMemoryStore()
	f := NewCachedFetcher(store, nil)
	ctx := context.Background()

	f.Store(ctx, &Result{URL: "https://www.linkedin.com/jobs/view/1", HTML: "<h1>plain</h1>", StatusCode: 200})
	cached, err := f.Cached(ctx, "https://www.linkedin.com/jobs/view/1", true)
	require.NoError(t, err)
	assert.Nil(t, cached)

	f.Store(ctx, &Result{URL: "https://www.linkedin.com/jobs/view/1", HTML: "<h1>rendered</h1>", StatusCode: 200, Rendered: true})
	cached, err = f.Cached(ctx, "https://www.linkedin.com/jobs/view/1", true)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.Rendered)
	assert.Equal(t, "<h1>rendered</h1>", cached.HTML)
}

func TestCachedFetcher_InvalidateCache(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>x</p>")
	f := NewCachedFetcher(newMemoryStore(), nil)
	ctx := context.Background()

	_, err := f.Fetch(ctx, server.URL)
	require.NoError(t, err)
	require.NoError(t, f.InvalidateCache(ctx, server.URL))

	res, err := f.Fetch(ctx, server.URL)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDefaultCachedFetcherConfig(t *testing.T) {
	config := DefaultCachedFetcherConfig()
	require.NotNil(t, config)
	assert.Equal(t, db.DefaultPageCacheTTL, config.CacheTTL)
	assert.False(t, config.SkipCache)
	assert.NotNil(t, config.Options)
}

func TestNewCachedFetcher_EmptyConfig(t *testing.T) {
	fetcher := NewCachedFetcher(nil, &CachedFetcherConfig{})
	assert.NotZero(t, fetcher.cacheTTL)
	assert.NotNil(t, fetcher.options)
	assert.NotNil(t, fetcher.logger)
}

func TestDerefHelpers(t *testing.T) {
	s, i := "hello", 200
	assert.Equal(t, "", derefString(nil))
	assert.Equal(t, "hello", derefString(&s))
	assert.Equal(t, 0, derefInt(nil))
	assert.Equal(t, 200, derefInt(&i))
}
