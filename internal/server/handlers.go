package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/logging"
	"github.com/jonathan/job-extractor/internal/messaging"
	"github.com/jonathan/job-extractor/internal/server/middleware"
)

// MessageRequest is the body of POST /messages. URL names the page; HTML,
// when present, is used instead of loading it.
type MessageRequest struct {
	Action messaging.Action `json:"action"`
	URL    string           `json:"url"`
	HTML   string           `json:"html,omitempty"`
	Render *bool            `json:"render,omitempty"`
}

// StreamRequest is the body of POST /extract/stream.
type StreamRequest struct {
	URLs   []string `json:"urls" validate:"required,min=1,max=50,dive,required"`
	Render *bool    `json:"render,omitempty"`
}

// StreamEvent is one "job" event of an extraction stream.
type StreamEvent struct {
	Index    int                `json:"index"`
	URL      string             `json:"url"`
	Response messaging.Response `json:"response"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Render   bool   `json:"render"`
	Relay    bool   `json:"relay"`
}

type profileView struct {
	extract.Profile
	WaitMS int64 `json:"wait_ms"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "disabled",
		Render:   s.loader.CanRender(),
		Relay:    s.relay != nil,
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
		} else {
			resp.Database = "ok"
		}
	}
	s.jsonResponse(w, r, http.StatusOK, resp)
}

// handleProfiles returns the site profile table in resolution order
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := extract.Profiles()
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, profileView{Profile: p, WaitMS: p.Wait.Milliseconds()})
	}
	s.jsonResponse(w, r, http.StatusOK, views)
}

// handleMessages answers one page message. The reply always uses the message
// contract with HTTP 200; only malformed requests get an HTTP error.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Action.Known() {
		s.jsonResponse(w, r, http.StatusOK, messaging.Failure(messaging.ErrUnknownAction))
		return
	}
	if req.URL == "" {
		s.writeError(w, r, &ErrValidation{Field: "url", Message: "is required"})
		return
	}

	resp := s.runMessage(r.Context(), req.Action, req.URL, req.HTML, s.renderFor(req.Render))
	s.jsonResponse(w, r, http.StatusOK, resp)
}

// handleExtractStream extracts several pages concurrently, emitting a "job"
// event per page as it finishes and a final "complete" event.
func (s *Server) handleExtractStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if !s.decode(w, r, &req) {
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render := s.renderFor(req.Render)
	var succeeded atomic.Int64

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range req.URLs {
		g.Go(func() error {
			resp := s.runMessage(ctx, messaging.ActionExtractJob, u, "", render)
			if resp.OK {
				succeeded.Add(1)
			}
			// A write error means the client went away; stop the rest.
			return sse.WriteEvent("job", StreamEvent{Index: i, URL: u, Response: resp})
		})
	}
	if err := g.Wait(); err != nil {
		logging.FromContext(r.Context()).Info("stream aborted", "error", err)
		return
	}
	sse.WriteComplete(len(req.URLs), int(succeeded.Load()))
}

func (s *Server) renderFor(requested *bool) bool {
	if requested != nil {
		return *requested
	}
	return s.cfg.Render
}

// runMessage opens the page, answers action against it and records
// extract_job outcomes. Load failures use the failure shape too.
func (s *Server) runMessage(ctx context.Context, action messaging.Action, location, html string, render bool) messaging.Response {
	page, err := s.openPage(ctx, location, html, render)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to open page", "url", location, "render", render, "error", err)
		resp := messaging.Failure(err)
		if action == messaging.ActionExtractJob {
			s.record(ctx, location, resp)
		}
		return resp
	}
	defer s.loader.Release(context.WithoutCancel(ctx), page)

	resp := s.handler.Handle(ctx, page, messaging.Request{Action: action})
	if action == messaging.ActionExtractJob {
		s.record(ctx, location, resp)
	}
	return resp
}

func (s *Server) openPage(ctx context.Context, location, html string, render bool) (fetch.Page, error) {
	if html == "" {
		return s.loader.Load(ctx, location, render)
	}
	if err := fetch.CheckLocation(location); err != nil {
		return nil, err
	}
	return fetch.FromHTML(html, location)
}

// record stores an extraction outcome when a store is configured. Failures
// are logged and never affect the response.
func (s *Server) record(ctx context.Context, location string, resp messaging.Response) {
	if s.store == nil {
		return
	}
	e := &db.Extraction{
		URL:  location,
		Host: extract.HostnameOf(location),
		Site: string(extract.ResolveURL(location).Site),
		OK:   resp.OK,
	}
	if id := middleware.GetRequestID(ctx); id != "" {
		e.RequestID = &id
	}
	if resp.Job != nil {
		e.JobTitle = resp.Job.JobTitle
		e.Company = resp.Job.Company
		e.JobDescription = resp.Job.JobDescription
	}
	if resp.Debug != nil {
		e.Ready = resp.Debug.Ready
		e.ElapsedMS = resp.Debug.ElapsedMS
	}
	if resp.Error != "" {
		msg := resp.Error
		e.ErrorMessage = &msg
	}

	if err := s.store.RecordExtraction(context.WithoutCancel(ctx), e); err != nil {
		logging.FromContext(ctx).Warn("failed to record extraction", "url", location, "error", err)
	}
}
