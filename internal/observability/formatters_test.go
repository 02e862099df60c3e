package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/messaging"
)

func TestPrintExtraction(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	resp := messaging.Response{
		OK: true,
		Job: &extract.Job{
			JobTitle:       "Backend Engineer",
			JobDescription: "Build APIs.\n\nShip often.",
		},
		Debug: &messaging.Debug{Site: extract.SiteLinkedIn, Ready: true, ElapsedMS: 120, Enriched: true},
	}

	p.PrintExtraction("https://www.linkedin.com/jobs/view/1", resp)
	output := buf.String()

	assert.Contains(t, output, "EXTRACTED JOB")
	assert.Contains(t, output, "Backend Engineer")
	assert.Contains(t, output, "Company:  (missing)")
	assert.Contains(t, output, "linkedin (ready: yes, 120ms)")
	assert.Contains(t, output, "filled by LLM")
	assert.Contains(t, output, "Ship often.")
}

func TestPrintExtraction_Failure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintExtraction("chrome://settings", messaging.Failure(errors.New("cannot extract from browser internal pages")))
	output := buf.String()

	assert.Contains(t, output, "EXTRACTION FAILED")
	assert.Contains(t, output, "chrome://settings")
}

func TestPrintExtraction_LongDescription(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "Requirement line"
	}
	resp := messaging.Response{OK: true, Job: &extract.Job{JobDescription: strings.Join(lines, "\n")}}

	p.PrintExtraction("https://example.com", resp)
	assert.Contains(t, buf.String(), "... and 4 more lines")
}

func TestPrintBox_TruncatesByCharacter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.True(t, utf8.ValidString(line))
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintMatch(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	tracked := "t-1"
	match := &backend.MatchResponse{
		MatchScore:        0.82,
		SemanticScore:     0.9,
		SkillScore:        0.7,
		OverlappingSkills: []string{"Go", "SQL"},
		MissingSkills:     []string{"a", "b", "c", "d", "e", "f", "g"},
		TrackedJobID:      &tracked,
	}

	p.PrintMatch(extract.Job{JobTitle: "SRE"}, match, []string{"company is empty"})
	output := buf.String()

	assert.Contains(t, output, "CV MATCH")
	assert.Contains(t, output, "82%")
	assert.Contains(t, output, "Tracked:  t-1")
	assert.Contains(t, output, "• Go")
	assert.Contains(t, output, "... and 2 more")
	assert.Contains(t, output, "⚠ company is empty")
}

func TestPrintMatch_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintMatch(extract.Job{}, nil, nil)
	assert.Empty(t, buf.String())
}

func TestPrintCoverLetter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCoverLetter(&backend.CoverLetterResponse{CoverLetter: "Dear team,\n\nHire me.\n", Mode: "template", Note: "no API key"})
	output := buf.String()

	assert.Contains(t, output, "Mode: template")
	assert.Contains(t, output, "Note: no API key")
	assert.True(t, strings.HasSuffix(output, "Hire me.\n"))
}

func TestPrintProfiles(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProfiles(extract.Profiles())
	output := buf.String()

	assert.Contains(t, output, "SITE PROFILES")
	assert.Contains(t, output, "linkedin  (wait 3.5s)")
	assert.Contains(t, output, "generic  (wait 0s)")
}

func TestFirstOf(t *testing.T) {
	assert.Equal(t, "-", firstOf(nil))
	assert.Equal(t, "h1", firstOf([]string{"h1"}))
	assert.Equal(t, "h1 (+2)", firstOf([]string{"h1", "a", "b"}))
}
