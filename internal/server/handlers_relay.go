package server

import (
	"net/http"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/messaging"
)

// MatchRequest is the body of POST /match. Fields supplied by the caller
// win over extracted ones; the page is only read when the description is
// missing.
type MatchRequest struct {
	CVID           string `json:"cv_id" validate:"required"`
	URL            string `json:"url,omitempty" validate:"required_without=JobDescription"`
	HTML           string `json:"html,omitempty"`
	Render         *bool  `json:"render,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
	Company        string `json:"company,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
}

// MatchResponse is the reply to POST /match.
type MatchResponse struct {
	Job      extract.Job            `json:"job"`
	Match    *backend.MatchResponse `json:"match"`
	Warnings []string               `json:"warnings,omitempty"`
}

// CoverLetterResponse is the reply to POST /cover-letter.
type CoverLetterResponse struct {
	*backend.CoverLetterResponse
	Warnings []string `json:"warnings,omitempty"`
}

// handleMatch extracts the job when needed and relays it for scoring
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		s.writeError(w, r, &ErrNotConfigured{Feature: "backend"})
		return
	}
	var req MatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	job := extract.Job{
		JobTitle:       extract.Normalize(req.JobTitle),
		Company:        extract.Normalize(req.Company),
		JobDescription: extract.Truncate(extract.Normalize(req.JobDescription), extract.MaxDescriptionLength),
	}
	if job.JobDescription == "" {
		resp := s.runMessage(r.Context(), messaging.ActionExtractJob, req.URL, req.HTML, s.renderFor(req.Render))
		if !resp.OK {
			s.writeError(w, r, &ErrExtraction{Message: resp.Error})
			return
		}
		job = mergeJob(job, *resp.Job)
	}

	matchReq := backend.NewMatchRequest(req.CVID, job, req.URL)
	match, err := s.relay.Match(r.Context(), matchReq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, MatchResponse{Job: job, Match: match, Warnings: matchReq.Warnings()})
}

// handleCoverLetter relays a cover letter request
func (s *Server) handleCoverLetter(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		s.writeError(w, r, &ErrNotConfigured{Feature: "backend"})
		return
	}
	var req backend.CoverLetterRequest
	if !s.decode(w, r, &req) {
		return
	}

	letter, err := s.relay.GenerateCoverLetter(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, CoverLetterResponse{CoverLetterResponse: letter, Warnings: req.Warnings()})
}

// mergeJob fills empty fields of supplied from extracted.
func mergeJob(supplied, extracted extract.Job) extract.Job {
	if supplied.JobTitle == "" {
		supplied.JobTitle = extracted.JobTitle
	}
	if supplied.Company == "" {
		supplied.Company = extracted.Company
	}
	if supplied.JobDescription == "" {
		supplied.JobDescription = extracted.JobDescription
	}
	return supplied
}
