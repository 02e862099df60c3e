package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/jonathan/job-extractor/internal/dom"
	"github.com/jonathan/job-extractor/internal/extract"
)

// ErrBrowserUnavailable is returned when rendering is requested without a browser.
var ErrBrowserUnavailable = errors.New("rendering requested but no browser is configured")

// Page is an extract.Page that holds resources until Close.
type Page interface {
	extract.Page
	Close() error
}

type snapshotPage struct {
	*dom.Page
}

func (snapshotPage) Close() error { return nil }

// FromHTML parses html into a frozen page located at location.
func FromHTML(html, location string) (Page, error) {
	doc, err := dom.Snapshot(html)
	if err != nil {
		return nil, &Error{URL: location, Message: "failed to parse HTML", Cause: err}
	}
	return snapshotPage{dom.NewPage(doc, location)}, nil
}

// Loader turns locations into pages: HTTP snapshots by default, live browser
// tabs when rendering is requested.
type Loader struct {
	fetcher *CachedFetcher
	browser *Browser
	logger  *slog.Logger
}

// NewLoader creates a Loader. browser may be nil to disable rendering.
func NewLoader(fetcher *CachedFetcher, browser *Browser, logger *slog.Logger) *Loader {
	if fetcher == nil {
		fetcher = NewCachedFetcher(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: fetcher, browser: browser, logger: logger}
}

// CanRender reports whether rendered loads are available.
func (l *Loader) CanRender() bool {
	return l.browser != nil
}

// Load returns a page for location. file:// locations are read from disk.
// A fresh rendered copy in the cache is served as a snapshot instead of
// opening a new tab.
func (l *Loader) Load(ctx context.Context, location string, render bool) (Page, error) {
	if err := CheckLocation(location); err != nil {
		return nil, err
	}

	if u, err := url.Parse(location); err == nil && strings.EqualFold(u.Scheme, "file") {
		return l.loadFile(location, u.Path)
	}

	if !render {
		res, err := l.fetcher.Fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("loaded page over HTTP", "url", location, "from_cache", res.FromCache, "bytes", len(res.HTML))
		return FromHTML(res.HTML, location)
	}

	if l.browser == nil {
		return nil, &Error{URL: location, Message: "cannot render page", Cause: ErrBrowserUnavailable}
	}

	cached, err := l.fetcher.Cached(ctx, location, true)
	if err != nil {
		l.logger.Warn("rendered cache lookup failed", "url", location, "error", err)
	} else if cached != nil {
		l.logger.Debug("serving rendered page from cache", "url", location)
		return FromHTML(cached.HTML, location)
	}

	return l.browser.Open(ctx, location)
}

// Release closes page. Live browser pages are captured into the cache first
// so repeat requests can skip rendering.
func (l *Loader) Release(ctx context.Context, page Page) {
	if page == nil {
		return
	}
	if bp, ok := page.(*BrowserPage); ok && l.fetcher.store != nil {
		html, err := bp.HTML(ctx)
		if err != nil {
			l.logger.Warn("failed to capture rendered page", "url", bp.Location(), "error", err)
		} else {
			l.fetcher.Store(ctx, &Result{URL: bp.Requested(), HTML: html, StatusCode: 200, Rendered: true})
		}
	}
	if err := page.Close(); err != nil {
		l.logger.Warn("failed to close page", "url", page.Location(), "error", err)
	}
}

func (l *Loader) loadFile(location, path string) (Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{URL: location, Message: "failed to open file", Cause: err}
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, MaxBodyBytes))
	if err != nil {
		return nil, &Error{URL: location, Message: fmt.Sprintf("failed to read %s", path), Cause: err}
	}
	return FromHTML(string(data), location)
}
