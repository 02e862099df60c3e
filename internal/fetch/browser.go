package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultNavigationTimeout bounds loading a page up to a ready <body>.
const DefaultNavigationTimeout = 30 * time.Second

// BrowserOptions configures headless Chrome.
type BrowserOptions struct {
	NavigationTimeout time.Duration
	UserAgent         string
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
	Logger   *slog.Logger
}

// Browser is a headless Chrome instance. Pages opened from it are separate
// tabs and may be used concurrently.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        BrowserOptions
	logger      *slog.Logger
}

// NewBrowser starts headless Chrome. Requires Chrome/Chromium to be installed.
func NewBrowser(ctx context.Context, opts *BrowserOptions) (*Browser, error) {
	o := BrowserOptions{}
	if opts != nil {
		o = *opts
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(o.UserAgent),
	)
	if o.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Debug("headless browser started")

	return &Browser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        o,
		logger:      logger,
	}, nil
}

// Close shuts the browser down and closes every open tab.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// Open navigates a new tab to location and waits for <body> to be ready.
// The returned page stays live: its DOM keeps changing as the site's scripts
// run, and readiness waits observe those mutations.
func (b *Browser) Open(ctx context.Context, location string) (*BrowserPage, error) {
	if err := CheckLocation(location); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	page := &BrowserPage{ctx: tabCtx, cancel: tabCancel, location: location, requested: location}

	navCtx, cancel := context.WithTimeout(tabCtx, b.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var finalURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(location),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		_ = page.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{URL: location, Message: "browser navigation failed", Cause: err, Retryable: true}
	}
	if finalURL != "" {
		page.location = finalURL
	}

	b.logger.Debug("opened page in browser", "url", location, "final_url", page.location, "elapsed", time.Since(start))
	return page, nil
}

// BrowserPage is a live tab.
type BrowserPage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	location  string
	requested string
	once      sync.Once
}

// Location returns the page URL after redirects.
func (p *BrowserPage) Location() string {
	return p.location
}

// Requested returns the URL the page was opened with.
func (p *BrowserPage) Requested() string {
	return p.requested
}

// queryTextJS returns {found, text} for the first element matching a selector.
// innerText gives rendered text; invalid selectors report not found.
const queryTextJS = `(() => {
	try {
		const el = document.querySelector(%s);
		if (!el) return {found: false, text: ""};
		return {found: true, text: el.innerText ?? el.textContent ?? ""};
	} catch (e) {
		return {found: false, text: ""};
	}
})()`

// anyExistsJS is truthy once any selector matches.
const anyExistsJS = `(() => %s.some((s) => {
	try { return document.querySelector(s) !== null; } catch (e) { return false; }
}))()`

const selectionJS = `(() => {
	const sel = window.getSelection ? window.getSelection() : null;
	return sel ? String(sel) : "";
})()`

type queryResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// QueryText returns the innerText of the first element matching selector.
func (p *BrowserPage) QueryText(ctx context.Context, selector string) (string, bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", false, err
	}
	var res queryResult
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(queryTextJS, quoted), &res)); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

// Title returns document.title.
func (p *BrowserPage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// WaitForAny polls on DOM mutations until a selector matches or timeout
// elapses. The in-page observer is torn down on both paths.
func (p *BrowserPage) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (bool, error) {
	if len(selectors) == 0 {
		return false, nil
	}
	list, err := json.Marshal(selectors)
	if err != nil {
		return false, err
	}
	expr := fmt.Sprintf(anyExistsJS, list)

	if timeout <= 0 {
		var ok bool
		if err := p.run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
			return false, err
		}
		return ok, nil
	}

	var ok bool
	err = p.run(ctx, chromedp.Poll(expr, &ok,
		chromedp.WithPollingMutation(),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Selection returns the text currently selected in the page.
func (p *BrowserPage) Selection(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(selectionJS, &text)); err != nil {
		return "", err
	}
	return text, nil
}

// HTML returns the current serialized document.
func (p *BrowserPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close closes the tab. Safe to call more than once.
func (p *BrowserPage) Close() error {
	var err error
	p.once.Do(func() {
		err = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}

// run executes actions in the tab, aborting when the caller's ctx is done.
func (p *BrowserPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
