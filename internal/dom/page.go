package dom

import (
	"context"
	"time"
)

// Page binds a Document to the location it was loaded from.
type Page struct {
	doc      *Document
	location string
}

// NewPage creates a page for doc loaded from location.
func NewPage(doc *Document, location string) *Page {
	return &Page{doc: doc, location: location}
}

// Document returns the underlying document.
func (p *Page) Document() *Document {
	return p.doc
}

// Location returns the URL the page was loaded from.
func (p *Page) Location() string {
	return p.location
}

// QueryText returns the visible text of the first element matching selector.
func (p *Page) QueryText(_ context.Context, selector string) (string, bool, error) {
	text, found := p.doc.FirstText(selector)
	return text, found, nil
}

// Title returns the document title.
func (p *Page) Title(_ context.Context) (string, error) {
	return p.doc.Title(), nil
}

// WaitForAny waits until any selector matches or timeout elapses.
func (p *Page) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (bool, error) {
	return p.doc.WaitForAny(ctx, selectors, timeout)
}

// WaitForAny blocks until at least one of selectors matches an element, the
// timeout elapses, or ctx is done. It re-evaluates only when the document
// reports a mutation, and always releases its subscription before returning.
// A timeout is reported as (false, nil).
func (d *Document) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (bool, error) {
	if len(selectors) == 0 {
		return false, nil
	}

	// Subscribe before the first check so a mutation landing in between is not lost.
	changes, stop := d.Observe()
	defer stop()

	if d.AnyExists(selectors) {
		return true, nil
	}
	if d.Frozen() || timeout <= 0 {
		return false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-changes:
			if d.AnyExists(selectors) {
				return true, nil
			}
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
