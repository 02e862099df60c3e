package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-extractor/internal/db"
)

// PageStore is the page cache the fetcher reads through. *db.DB implements it.
type PageStore interface {
	ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error)
	GetFreshCrawledPage(ctx context.Context, pageURL string, maxAge time.Duration, requireRendered bool) (*db.CrawledPage, error)
	UpsertCrawledPage(ctx context.Context, page *db.CrawledPage) error
	RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error
	ExpireCrawledPage(ctx context.Context, pageURL string) error
}

// CachedFetcher wraps URL fetching with database-backed caching.
type CachedFetcher struct {
	store     PageStore
	options   *Options
	cacheTTL  time.Duration
	skipCache bool // For testing or forcing fresh fetches
	logger    *slog.Logger
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	Logger    *slog.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:  db.DefaultPageCacheTTL,
		SkipCache: false,
		Options:   DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher. store may be nil, in which
// case every call goes to the network.
func NewCachedFetcher(store PageStore, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = db.DefaultPageCacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{
		store:     store,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		logger:    logger,
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool      // Whether this result came from cache
	PageID    uuid.UUID // Database ID of the cached page
}

func (f *CachedFetcher) cacheEnabled() bool {
	return !f.skipCache && f.store != nil
}

// Fetch retrieves a URL, using cache if available and fresh.
// Returns cached content if within TTL, otherwise fetches fresh content and caches it.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if err := CheckLocation(urlStr); err != nil {
		return nil, err
	}

	if f.cacheEnabled() {
		shouldSkip, reason, err := f.store.ShouldSkipURL(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to check skip status: %w", err)
		}
		if shouldSkip {
			return nil, &Error{
				URL:       urlStr,
				Message:   fmt.Sprintf("URL skipped: %s", reason),
				Retryable: false,
			}
		}

		cached, err := f.Cached(ctx, urlStr, false)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		if f.store != nil && ctx.Err() == nil {
			statusCode := 0
			if result != nil {
				statusCode = result.StatusCode
			}
			if recErr := f.store.RecordFailedFetch(ctx, urlStr, statusCode, err.Error()); recErr != nil {
				f.logger.Warn("failed to record fetch failure", "url", urlStr, "error", recErr)
			}
		}
		return nil, err
	}

	return f.Store(ctx, result), nil
}

// Cached returns a fresh cached copy of urlStr, or nil when there is none.
// With rendered set, only copies captured from a browser count.
func (f *CachedFetcher) Cached(ctx context.Context, urlStr string, rendered bool) (*CachedResult, error) {
	if !f.cacheEnabled() {
		return nil, nil
	}
	cached, err := f.store.GetFreshCrawledPage(ctx, urlStr, f.cacheTTL, rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to check cache: %w", err)
	}
	if cached == nil {
		return nil, nil
	}
	return &CachedResult{
		Result: &Result{
			URL:        cached.URL,
			HTML:       derefString(cached.RawHTML),
			StatusCode: derefInt(cached.HTTPStatus),
			Rendered:   cached.Rendered,
		},
		FromCache: true,
		PageID:    cached.ID,
	}, nil
}

// Store writes result to the cache. Cache failures are logged, never returned:
// the content is still usable.
func (f *CachedFetcher) Store(ctx context.Context, result *Result) *CachedResult {
	out := &CachedResult{Result: result}
	if f.store == nil {
		return out
	}

	page := &db.CrawledPage{
		URL:         result.URL,
		Host:        hostOf(result.URL),
		RawHTML:     &result.HTML,
		HTTPStatus:  &result.StatusCode,
		Rendered:    result.Rendered,
		FetchStatus: db.FetchStatusSuccess,
	}
	if err := f.store.UpsertCrawledPage(ctx, page); err != nil {
		f.logger.Warn("failed to cache page", "url", result.URL, "error", err)
		return out
	}
	out.PageID = page.ID
	return out
}

// InvalidateCache marks a cached page as stale, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(ctx context.Context, urlStr string) error {
	if f.store == nil {
		return nil
	}
	return f.store.ExpireCrawledPage(ctx, urlStr)
}

// Helper functions

func hostOf(raw string) *string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	return &host
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
