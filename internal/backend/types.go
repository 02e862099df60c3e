package backend

import (
	"github.com/jonathan/job-extractor/internal/extract"
)

// DefaultTone is used when a cover letter request names none.
const DefaultTone = "professional"

// MatchRequest asks the scoring service to match a stored CV against a job.
// A successful match also records the job as tracked.
type MatchRequest struct {
	CVID           string `json:"cv_id" validate:"required"`
	JobTitle       string `json:"job_title" validate:"required"`
	Company        string `json:"company"`
	JobDescription string `json:"job_description" validate:"required"`
	JobURL         string `json:"job_url,omitempty" validate:"omitempty,url"`
	Source         string `json:"source,omitempty" validate:"omitempty,oneof=linkedin indeed glassdoor generic"`
}

// NewMatchRequest builds a MatchRequest from an extracted job and the page
// it came from. Source is the site resolved from location.
func NewMatchRequest(cvID string, job extract.Job, location string) MatchRequest {
	req := MatchRequest{
		CVID:           cvID,
		JobTitle:       job.JobTitle,
		Company:        job.Company,
		JobDescription: job.JobDescription,
	}
	if location != "" {
		req.JobURL = location
		req.Source = string(extract.ResolveURL(location).Site)
	}
	return req
}

// Warnings returns advisory messages for a request that is valid but weak.
func (r MatchRequest) Warnings() []string {
	if r.Company == "" {
		return []string{"company is empty; the job can still be saved, but add it for best results"}
	}
	return nil
}

// MatchResponse is the scoring service's reply.
type MatchResponse struct {
	ID                string   `json:"id,omitempty" yaml:"id,omitempty"`
	CVID              string   `json:"cv_id" yaml:"cv_id"`
	JobTitle          *string  `json:"job_title" yaml:"job_title"`
	Company           *string  `json:"company" yaml:"company"`
	JobDescription    string   `json:"job_description,omitempty" yaml:"-"`
	MatchScore        float64  `json:"match_score" yaml:"match_score"`
	SemanticScore     float64  `json:"semantic_score" yaml:"semantic_score"`
	SkillScore        float64  `json:"skill_score" yaml:"skill_score"`
	JobSkills         []string `json:"job_skills" yaml:"job_skills"`
	OverlappingSkills []string `json:"overlapping_skills" yaml:"overlapping_skills"`
	MissingSkills     []string `json:"missing_skills" yaml:"missing_skills"`
	MatchID           *string  `json:"match_id,omitempty" yaml:"match_id,omitempty"`
	TrackedJobID      *string  `json:"tracked_job_id,omitempty" yaml:"tracked_job_id,omitempty"`
}

// TrackedID returns the tracked job id, or "" when the service sent none.
func (r *MatchResponse) TrackedID() string {
	if r == nil || r.TrackedJobID == nil {
		return ""
	}
	return *r.TrackedJobID
}

// CoverLetterRequest asks for a cover letter for a tracked job.
type CoverLetterRequest struct {
	CVID           string `json:"cv_id" validate:"required"`
	JobID          string `json:"job_id" validate:"required"`
	JobTitle       string `json:"job_title" validate:"required"`
	Company        string `json:"company"`
	JobDescription string `json:"job_description" validate:"required"`
	Tone           string `json:"tone"`
}

// Warnings returns advisory messages for a request that is valid but weak.
func (r CoverLetterRequest) Warnings() []string {
	if r.Company == "" {
		return []string{"company is empty; the letter may read as generic"}
	}
	return nil
}

// CoverLetterResponse is the generated letter.
type CoverLetterResponse struct {
	CoverLetter string `json:"cover_letter"`
	Mode        string `json:"mode"` // "openai" or "template"
	Note        string `json:"note,omitempty"`
}
