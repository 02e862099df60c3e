package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Job is the extracted posting. Every field is always a string; an empty
// string means nothing on the page matched.
type Job struct {
	JobTitle       string `json:"job_title"`
	Company        string `json:"company"`
	JobDescription string `json:"job_description"`
}

// IsEmpty reports whether nothing at all was extracted.
func (j Job) IsEmpty() bool {
	return j.JobTitle == "" && j.Company == "" && j.JobDescription == ""
}

// Result is a Job plus how it was obtained.
type Result struct {
	Job     Job
	Site    Site
	Host    string
	Ready   bool          // readiness wait saw a marker before timing out
	Elapsed time.Duration // total time spent, including the wait
}

// Extractor runs profile-driven extraction against pages.
type Extractor struct {
	logger  *slog.Logger
	maxWait time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxWait caps every profile's readiness wait at d. Zero leaves profile
// timeouts unchanged.
func WithMaxWait(d time.Duration) Option {
	return func(e *Extractor) {
		e.maxWait = d
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract resolves the profile for page's host, waits for the profile's
// readiness markers, then picks and normalizes each field.
//
// Finding nothing is not an error: the Job comes back with empty fields.
// Errors are always *EnvironmentError and mean the page could not be read.
func (e *Extractor) Extract(ctx context.Context, page Page) (*Result, error) {
	start := time.Now()
	host := HostnameOf(page.Location())
	profile := Resolve(host)

	logger := e.logger.With("host", host, "site", profile.Site)

	result := &Result{Site: profile.Site, Host: host}

	if wait := e.waitFor(profile); wait > 0 {
		ready, err := WaitForAny(ctx, page, profile.ReadySelectors(), wait)
		if err != nil {
			return nil, environmentError("readiness wait failed", err)
		}
		result.Ready = ready
		if !ready {
			logger.Debug("readiness wait timed out, extracting current content", "wait", wait)
		}
	}

	title, err := PickText(ctx, page, profile.Title)
	if err != nil {
		return nil, environmentError("failed to read title", err)
	}
	if title == "" && profile.DocumentTitleFallback {
		title, err = page.Title(ctx)
		if err != nil {
			return nil, environmentError("failed to read document title", err)
		}
	}

	company, err := PickText(ctx, page, profile.Company)
	if err != nil {
		return nil, environmentError("failed to read company", err)
	}

	description, err := PickText(ctx, page, profile.Description)
	if err != nil {
		return nil, environmentError("failed to read description", err)
	}

	result.Job = Job{
		JobTitle:       Normalize(title),
		Company:        Normalize(company),
		JobDescription: Truncate(Normalize(description), MaxDescriptionLength),
	}
	result.Elapsed = time.Since(start)

	logger.Debug("extracted job",
		"has_title", result.Job.JobTitle != "",
		"has_company", result.Job.Company != "",
		"description_chars", len([]rune(result.Job.JobDescription)),
		"ready", result.Ready,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (e *Extractor) waitFor(p Profile) time.Duration {
	if p.Wait <= 0 {
		return 0
	}
	if e.maxWait > 0 && e.maxWait < p.Wait {
		return e.maxWait
	}
	return p.Wait
}

func environmentError(message string, err error) error {
	var envErr *EnvironmentError
	if errors.As(err, &envErr) {
		return err
	}
	return &EnvironmentError{Message: message, Cause: err}
}
