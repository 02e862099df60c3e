package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/dom"
)

// snapshotPage returns a frozen page: readiness waits answer immediately.
func snapshotPage(t *testing.T, location, html string) *dom.Page {
	t.Helper()
	doc, err := dom.Snapshot(html)
	require.NoError(t, err)
	return dom.NewPage(doc, location)
}

// livePage returns a page whose document can still be mutated.
func livePage(t *testing.T, location, html string) *dom.Page {
	t.Helper()
	doc, err := dom.ParseString(html)
	require.NoError(t, err)
	return dom.NewPage(doc, location)
}

var errPageGone = errors.New("target closed")

// brokenPage fails the configured calls and records what was asked of it.
type brokenPage struct {
	location  string
	failQuery bool
	failWait  bool
	failTitle bool
	queried   []string
}

func (p *brokenPage) Location() string { return p.location }

func (p *brokenPage) QueryText(_ context.Context, selector string) (string, bool, error) {
	p.queried = append(p.queried, selector)
	if p.failQuery {
		return "", false, errPageGone
	}
	return "", false, nil
}

func (p *brokenPage) Title(context.Context) (string, error) {
	if p.failTitle {
		return "", errPageGone
	}
	return "", nil
}

func (p *brokenPage) WaitForAny(ctx context.Context, _ []string, _ time.Duration) (bool, error) {
	if p.failWait {
		return false, errPageGone
	}
	return false, ctx.Err()
}
