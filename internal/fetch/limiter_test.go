package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_PerHost(t *testing.T) {
	hl := NewHostLimiter(0.001, 1)
	ctx := context.Background()

	require.NoError(t, hl.WaitURL(ctx, "https://www.linkedin.com/jobs/1"))
	// Different host has its own bucket.
	require.NoError(t, hl.WaitURL(ctx, "https://www.indeed.com/viewjob"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(short, "https://WWW.LINKEDIN.COM/jobs/2"))
}

func TestHostLimiter_SharesBucketForUnparsedURLs(t *testing.T) {
	hl := NewHostLimiter(0.001, 1)
	require.NoError(t, hl.WaitURL(context.Background(), "::bad"))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(short, "no-host"))
}

func TestHostLimiter_MinimumBurst(t *testing.T) {
	hl := NewHostLimiter(100, 0)
	assert.Equal(t, 1, hl.b)
	require.NoError(t, hl.WaitURL(context.Background(), "https://example.com"))
}
