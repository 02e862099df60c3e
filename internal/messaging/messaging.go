// Package messaging implements the request/response contract callers use to
// ask for an extraction: {"action":"extract_job"} in, {"ok":true,"job":{...}}
// or {"ok":false,"error":"..."} out.
package messaging

import (
	"errors"
	"time"

	"github.com/jonathan/job-extractor/internal/extract"
)

// Action names a message type.
type Action string

const (
	ActionExtractJob   Action = "extract_job"
	ActionGetSelection Action = "get_selection"
)

// Known reports whether the handler serves a.
func (a Action) Known() bool {
	return a == ActionExtractJob || a == ActionGetSelection
}

var (
	// ErrUnknownAction is returned for any action the handler does not serve.
	ErrUnknownAction = errors.New("unknown message type")
	// ErrNoSelection means the page has no selected text, or cannot have any.
	ErrNoSelection = errors.New("no text selected")
)

// Request is an inbound message.
type Request struct {
	Action Action `json:"action"`
}

// Response is the reply to a Request. On success exactly one of Job or Text
// is set depending on the action; on failure only Error is set.
type Response struct {
	OK    bool         `json:"ok"`
	Job   *extract.Job `json:"job,omitempty"`
	Text  string       `json:"text,omitempty"`
	Error string       `json:"error,omitempty"`
	Debug *Debug       `json:"debug,omitempty"`
}

// Debug describes how an extraction went.
type Debug struct {
	Host       string       `json:"host"`
	Site       extract.Site `json:"site"`
	HasTitle   bool         `json:"hasTitle"`
	HasCompany bool         `json:"hasCompany"`
	HasDesc    bool         `json:"hasDesc"`
	Ready      bool         `json:"ready"`
	ElapsedMS  int64        `json:"elapsed_ms"`
	Enriched   bool         `json:"enriched,omitempty"`
}

// Failure converts err into the failure shape.
func Failure(err error) Response {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Response{OK: false, Error: err.Error()}
}

func debugFor(result *extract.Result, job extract.Job, enriched bool) *Debug {
	return &Debug{
		Host:       result.Host,
		Site:       result.Site,
		HasTitle:   job.JobTitle != "",
		HasCompany: job.Company != "",
		HasDesc:    job.JobDescription != "",
		Ready:      result.Ready,
		ElapsedMS:  result.Elapsed.Round(time.Millisecond).Milliseconds(),
		Enriched:   enriched,
	}
}
