package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/jonathan/job-extractor/internal/extract"
)

// SelectionReader is implemented by pages that can report the user's current
// text selection.
type SelectionReader interface {
	Selection(ctx context.Context) (string, error)
}

// Enricher fills fields the page did not yield.
type Enricher interface {
	Enrich(ctx context.Context, job extract.Job) (extract.Job, error)
}

// Handler dispatches messages against pages. Calls against the same page are
// serialized; calls against different pages run concurrently. Pages are used
// as map keys; a page that cannot be one is answered with a failure.
type Handler struct {
	extractor *extract.Extractor
	enricher  Enricher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[extract.Page]*pageLock
}

type pageLock struct {
	mu   sync.Mutex
	refs int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithEnricher enables missing-field enrichment.
func WithEnricher(e Enricher) HandlerOption {
	return func(h *Handler) {
		h.enricher = e
	}
}

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler that extracts with extractor.
func NewHandler(extractor *extract.Extractor, opts ...HandlerOption) *Handler {
	h := &Handler{
		extractor: extractor,
		logger:    slog.Default(),
		locks:     make(map[extract.Page]*pageLock),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle answers req for page. It never panics and never returns an error:
// every failure comes back as a Response with OK false.
func (h *Handler) Handle(ctx context.Context, page extract.Page, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("message handler panic", "action", req.Action, "panic", r)
			resp = Failure(fmt.Errorf("internal error: %v", r))
		}
	}()

	if !req.Action.Known() {
		return Failure(ErrUnknownAction)
	}
	if page == nil {
		return Failure(&extract.EnvironmentError{Message: "no page to read from"})
	}

	unlock, err := h.lock(page)
	if err != nil {
		return Failure(err)
	}
	defer unlock()

	if req.Action == ActionGetSelection {
		return h.selection(ctx, page)
	}
	return h.extractJob(ctx, page)
}

func (h *Handler) extractJob(ctx context.Context, page extract.Page) Response {
	result, err := h.extractor.Extract(ctx, page)
	if err != nil {
		h.logger.Warn("extraction failed", "location", page.Location(), "error", err)
		return Failure(err)
	}

	job, enriched := h.enrich(ctx, result.Job)
	return Response{OK: true, Job: &job, Debug: debugFor(result, job, enriched)}
}

// enrich fills only fields that are still empty. Enricher failures are logged
// and the original job is kept.
func (h *Handler) enrich(ctx context.Context, job extract.Job) (extract.Job, bool) {
	if h.enricher == nil || job.JobDescription == "" {
		return job, false
	}
	if job.JobTitle != "" && job.Company != "" {
		return job, false
	}

	filled, err := h.enricher.Enrich(ctx, job)
	if err != nil {
		h.logger.Warn("enrichment failed", "error", err)
		return job, false
	}

	out := job
	if out.JobTitle == "" {
		out.JobTitle = extract.Normalize(filled.JobTitle)
	}
	if out.Company == "" {
		out.Company = extract.Normalize(filled.Company)
	}
	return out, out != job
}

func (h *Handler) selection(ctx context.Context, page extract.Page) Response {
	reader, ok := page.(SelectionReader)
	if !ok {
		return Failure(ErrNoSelection)
	}
	text, err := reader.Selection(ctx)
	if err != nil {
		return Failure(&extract.EnvironmentError{Message: "failed to read selection", Cause: err})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Failure(ErrNoSelection)
	}
	return Response{OK: true, Text: extract.Truncate(text, extract.MaxDescriptionLength)}
}

// lock acquires the page's lock and returns its release func. Entries are
// reference counted and dropped once no caller holds or waits on them.
func (h *Handler) lock(page extract.Page) (func(), error) {
	if !reflect.TypeOf(page).Comparable() {
		return nil, &extract.EnvironmentError{Message: fmt.Sprintf("page type %T cannot be locked", page)}
	}
	l, err := h.acquire(page)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		h.mu.Lock()
		defer h.mu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, page)
		}
	}, nil
}

// acquire registers a reference to the page's lock. A comparable type can
// still hold an unhashable dynamic value; that surfaces as an error and h.mu
// is released either way.
func (h *Handler) acquire(page extract.Page) (l *pageLock, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, &extract.EnvironmentError{Message: fmt.Sprintf("page %T cannot be locked: %v", page, r)}
		}
	}()

	l, ok := h.locks[page]
	if !ok {
		l = &pageLock{}
		h.locks[page] = l
	}
	l.refs++
	return l, nil
}
