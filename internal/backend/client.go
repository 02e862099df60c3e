// Package backend relays extracted jobs to the matching and cover letter
// service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-extractor/internal/schemas"
)

const (
	// DefaultTimeout covers cover letter generation, the slowest call.
	DefaultTimeout = 60 * time.Second
	// maxResponseBytes bounds how much of a reply is read.
	maxResponseBytes = 1 << 20

	matchPath       = "/jobs/match"
	coverLetterPath = "/cover-letter/generate"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewClient creates a Client. BaseURL must be an absolute http(s) URL.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.APIToken,
		httpClient: httpClient,
		logger:     logger,
		validate:   v,
	}, nil
}

// Match scores the CV against the job and records it as tracked.
func (c *Client) Match(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, requestError(err)
	}
	for _, w := range req.Warnings() {
		c.logger.Warn(w, "operation", "match", "cv_id", req.CVID)
	}

	var resp MatchResponse
	if err := c.post(ctx, "match", matchPath, req, schemas.JobMatchResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateCoverLetter generates a cover letter for a tracked job.
func (c *Client) GenerateCoverLetter(ctx context.Context, req CoverLetterRequest) (*CoverLetterResponse, error) {
	if req.Tone == "" {
		req.Tone = DefaultTone
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, requestError(err)
	}
	for _, w := range req.Warnings() {
		c.logger.Warn(w, "operation", "cover letter", "job_id", req.JobID)
	}

	var resp CoverLetterResponse
	if err := c.post(ctx, "cover letter", coverLetterPath, req, schemas.CoverLetterResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends body as JSON, checks the reply against schema and decodes it
// into out.
func (c *Client) post(ctx context.Context, op, path string, body any, schema schemas.Name, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}
	c.logger.Debug("backend call", "operation", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := schemas.Validate(schema, data); err != nil {
		return fmt.Errorf("unexpected %s response: %w", op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
