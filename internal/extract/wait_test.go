package extract

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForAny_AlreadyPresent(t *testing.T) {
	page := livePage(t, "https://www.linkedin.com/jobs/view/1", `<div class="jobs-description__content">x</div>`)

	start := time.Now()
	ok, err := WaitForAny(context.Background(), page, []string{".missing", ".jobs-description__content"}, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForAny_MarkerInsertedLater(t *testing.T) {
	page := livePage(t, "https://www.linkedin.com/jobs/view/1", `<body><div id="root"></div></body>`)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = page.Document().Mutate(func(root *goquery.Selection) {
			root.Find("#root").AppendHtml(`<p>loading</p>`)
		})
		time.Sleep(30 * time.Millisecond)
		_ = page.Document().Mutate(func(root *goquery.Selection) {
			root.Find("#root").AppendHtml(`<div class="show-more-less-html__markup">We need Go</div>`)
		})
	}()

	ok, err := WaitForAny(context.Background(), page, []string{".show-more-less-html__markup"}, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForAny_TimeoutIsNotAnError(t *testing.T) {
	page := livePage(t, "https://www.indeed.com/viewjob", `<body></body>`)

	start := time.Now()
	ok, err := WaitForAny(context.Background(), page, []string{"#jobDescriptionText"}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, page.Document().Observers())
}

func TestWaitForAny_EmptySelectors(t *testing.T) {
	page := livePage(t, "https://example.com", `<h1>x</h1>`)

	ok, err := WaitForAny(context.Background(), page, nil, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitForAny_CancelledContext(t *testing.T) {
	page := livePage(t, "https://www.indeed.com/viewjob", `<body></body>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForAny(ctx, page, []string{"#jobDescriptionText"}, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForAny_CancelledWhileWaiting(t *testing.T) {
	page := livePage(t, "https://www.indeed.com/viewjob", `<body></body>`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := WaitForAny(ctx, page, []string{"#jobDescriptionText"}, 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForAny_PageError(t *testing.T) {
	_, err := WaitForAny(context.Background(), &brokenPage{failWait: true}, []string{"h1"}, time.Second)
	require.ErrorIs(t, err, errPageGone)
}
