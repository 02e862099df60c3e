package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStatusFromHTTP(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{200, FetchStatusSuccess},
		{204, FetchStatusSuccess},
		{404, FetchStatusNotFound},
		{410, FetchStatusNotFound},
		{403, FetchStatusBlocked},
		{429, FetchStatusBlocked},
		{500, FetchStatusError},
		{0, FetchStatusError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FetchStatusFromHTTP(tt.status), "status %d", tt.status)
	}
}

func TestIsPermanentHTTPStatus(t *testing.T) {
	for _, status := range []int{404, 410, 451} {
		assert.True(t, IsPermanentHTTPStatus(status), "status %d", status)
	}
	for _, status := range []int{0, 200, 403, 429, 500, 503} {
		assert.False(t, IsPermanentHTTPStatus(status), "status %d", status)
	}
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, RetryBackoff(0))
	assert.Equal(t, 5*time.Minute, RetryBackoff(1))
	assert.Equal(t, 25*time.Minute, RetryBackoff(2))
	assert.Equal(t, RetryMaxBackoff, RetryBackoff(3))
	assert.Equal(t, RetryMaxBackoff, RetryBackoff(10))
	assert.Equal(t, time.Minute, RetryBackoff(-1))
}

func TestHashContent(t *testing.T) {
	a := HashContent("<html>a</html>")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashContent("<html>a</html>"))
	assert.NotEqual(t, a, HashContent("<html>b</html>"))
}

func TestCrawledPage_Freshness(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		page      CrawledPage
		maxAge    time.Duration
		wantFresh bool
		wantExp   bool
	}{
		{"recent no expiry", CrawledPage{FetchedAt: time.Now()}, time.Hour, true, false},
		{"too old", CrawledPage{FetchedAt: time.Now().Add(-2 * time.Hour)}, time.Hour, false, false},
		{"expired", CrawledPage{FetchedAt: time.Now(), ExpiresAt: &past}, time.Hour, false, true},
		{"expires later", CrawledPage{FetchedAt: time.Now(), ExpiresAt: &future}, time.Hour, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantFresh, tt.page.IsFresh(tt.maxAge))
			assert.Equal(t, tt.wantExp, tt.page.IsExpired())
		})
	}
}

func TestCrawledPage_JSONOmitsHTML(t *testing.T) {
	html := "<html>large</html>"
	data, err := json.Marshal(CrawledPage{URL: "https://example.com", RawHTML: &html})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "large")
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS crawled_pages")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS extractions")
}
