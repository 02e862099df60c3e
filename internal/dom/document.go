// Package dom provides an in-memory HTML document that can be queried with CSS
// selectors, mutated, and observed for changes.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// ErrFrozen is returned when mutating a document that has been frozen.
var ErrFrozen = errors.New("document is frozen")

// Document wraps a parsed HTML tree. Reads and mutations are serialized, and
// every successful mutation is broadcast to the current observers.
type Document struct {
	mu     sync.RWMutex
	doc    *goquery.Document
	frozen bool

	subsMu sync.Mutex
	subs   map[uint64]chan struct{}
	nextID uint64
}

// Parse reads HTML from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{
		doc:  doc,
		subs: make(map[uint64]chan struct{}),
	}, nil
}

// ParseString parses an HTML string.
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// Snapshot parses html and freezes the result. Use it for pages whose content
// will never change after loading.
func Snapshot(html string) (*Document, error) {
	d, err := ParseString(html)
	if err != nil {
		return nil, err
	}
	d.Freeze()
	return d, nil
}

// Exists reports whether selector matches at least one element.
func (d *Document) Exists(selector string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.Find(selector).Length() > 0
}

// AnyExists reports whether any of the selectors matches an element.
func (d *Document) AnyExists(selectors []string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sel := range selectors {
		if d.doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// FirstText returns the visible text of the first element (in document order)
// matched by selector. found is false when nothing matches.
func (d *Document) FirstText(selector string) (text string, found bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel := d.doc.Find(selector)
	if sel.Length() == 0 {
		return "", false
	}
	return VisibleText(sel.Nodes[0]), true
}

// Title returns the document title with whitespace collapsed, like
// document.title in a browser.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	title := d.doc.Find("title").First().Text()
	return strings.Join(strings.FieldsFunc(title, isCollapsible), " ")
}

// HTML serializes the current document.
func (d *Document) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.Html()
}

// Mutate applies fn to the document root and notifies observers.
func (d *Document) Mutate(fn func(root *goquery.Selection)) error {
	d.mu.Lock()
	if d.frozen {
		d.mu.Unlock()
		return ErrFrozen
	}
	fn(d.doc.Selection)
	d.mu.Unlock()

	d.notify()
	return nil
}

// Freeze marks the document immutable. Waiters on a frozen document answer
// from its current state immediately.
func (d *Document) Freeze() {
	d.mu.Lock()
	d.frozen = true
	d.mu.Unlock()
}

// Frozen reports whether the document has been frozen.
func (d *Document) Frozen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frozen
}

// Observe registers for mutation notifications. The returned channel receives
// at most one pending signal at a time; bursts of mutations are coalesced.
// The cancel func must be called to release the subscription and is safe to
// call more than once.
func (d *Document) Observe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	d.subsMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			delete(d.subs, id)
			d.subsMu.Unlock()
		})
	}
}

// Observers returns the number of live subscriptions.
func (d *Document) Observers() int {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	return len(d.subs)
}

func (d *Document) notify() {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
