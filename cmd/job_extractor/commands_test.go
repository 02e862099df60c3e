package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/messaging"
	"github.com/jonathan/job-extractor/internal/server"
)

const linkedinPosting = `<html><body>
<div class="jobs-unified-top-card__job-title"><h1>Backend Engineer</h1></div>
<div class="jobs-unified-top-card__company-name"><a>Acme</a></div>
<div class="jobs-description__content">Build APIs in Go.</div>
</body></html>`

const genericPosting = `<html><head><title>Data Analyst</title></head><body><h1>Data Analyst</h1><main>Crunch numbers.</main></body></html>`

// isolate clears the environment the config layer reads so tests never
// touch a developer's database or backend.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "JOBX_DATABASE_URL", "GEMINI_API_KEY", "JOBX_LLM_API_KEY", "JOBX_LLM_ENRICH", "JOBX_BACKEND_BASE_URL"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

// run executes the CLI in-process and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractCommand_HTMLFileAsJSON(t *testing.T) {
	isolate(t)
	path := writeFile(t, "posting.html", linkedinPosting)

	out, err := run(t, "extract", "--html", path, "--location", "https://www.linkedin.com/jobs/view/1", "--json")
	require.NoError(t, err)

	var resp messaging.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.True(t, resp.OK)
	assert.Equal(t, extract.Job{JobTitle: "Backend Engineer", Company: "Acme", JobDescription: "Build APIs in Go."}, *resp.Job)
	assert.Equal(t, extract.SiteLinkedIn, resp.Debug.Site)
	assert.True(t, resp.Debug.Ready)
}

func TestExtractCommand_FileArgumentPrintsBox(t *testing.T) {
	isolate(t)
	path := writeFile(t, "posting.html", genericPosting)

	out, err := run(t, "extract", path)
	require.NoError(t, err)

	assert.Contains(t, out, "EXTRACTED JOB")
	assert.Contains(t, out, "Data Analyst")
	assert.Contains(t, out, "Crunch numbers.")
	assert.Contains(t, out, "generic")
}

func TestExtractCommand_BatchOverHTTP(t *testing.T) {
	isolate(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(genericPosting))
	}))
	defer ts.Close()

	out, err := run(t, "extract", "--json", "--concurrency", "2", ts.URL+"/a", "chrome://settings", ts.URL+"/b")
	require.Error(t, err)
	assert.Equal(t, "1 of 3 extractions failed", err.Error())

	var events []server.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i, ev.Index)
	}
	assert.True(t, events[0].Response.OK)
	assert.Equal(t, "Data Analyst", events[0].Response.Job.JobTitle)
	assert.False(t, events[1].Response.OK)
	assert.Contains(t, events[1].Response.Error, "cannot extract from browser internal pages")
	assert.True(t, events[2].Response.OK)
}

func TestExtractCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no inputs", []string{"extract"}, "at least one URL"},
		{"missing html file", []string{"extract", "--html", "/nonexistent/posting.html"}, "failed to read HTML file"},
		{"bad concurrency", []string{"extract", "--concurrency", "0", "https://example.com"}, "Config.Extract.Concurrency"},
		{"bad log format", []string{"extract", "--log-format", "xml", "https://example.com"}, "Config.Log.Format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArgLocation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o600))

	assert.Equal(t, "https://www.indeed.com/viewjob?jk=1", argLocation("https://www.indeed.com/viewjob?jk=1"))
	assert.Equal(t, "https://www.linkedin.com/jobs/view/1", argLocation("www.linkedin.com/jobs/view/1"))
	assert.Equal(t, "about:blank", argLocation("about:blank"))
	assert.Equal(t, "file://"+filepath.ToSlash(path), argLocation(path))
}

func TestProfilesCommand(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		isolate(t)
		out, err := run(t, "profiles", "--check")
		require.NoError(t, err)

		var profiles []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &profiles))
		require.Len(t, profiles, 4)
		assert.Equal(t, "linkedin", profiles[0]["site"])
		assert.Equal(t, "3.5s", profiles[0]["wait"])
		assert.Equal(t, "generic", profiles[3]["site"])
	})

	t.Run("site lookup", func(t *testing.T) {
		isolate(t)
		out, err := run(t, "profiles", "--site", "uk.indeed.com", "--format", "json")
		require.NoError(t, err)

		var profiles []extract.Profile
		require.NoError(t, json.Unmarshal([]byte(out), &profiles))
		require.Len(t, profiles, 1)
		assert.Equal(t, extract.SiteIndeed, profiles[0].Site)
	})

	t.Run("table", func(t *testing.T) {
		isolate(t)
		out, err := run(t, "profiles", "-f", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "SITE PROFILES")
	})

	t.Run("unknown format", func(t *testing.T) {
		isolate(t)
		_, err := run(t, "profiles", "-f", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

// fakeBackend records the last request body per path.
type fakeBackend struct {
	mu     sync.Mutex
	bodies map[string]map[string]any
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{bodies: map[string]map[string]any{}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.bodies[r.URL.Path] = body
		fb.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/jobs/match":
			_, _ = w.Write([]byte(`{"cv_id":"42","job_title":"Backend Engineer","company":"Acme","match_score":0.81,
				"semantic_score":0.9,"skill_score":0.7,"job_skills":["go"],"overlapping_skills":["go"],
				"missing_skills":["kafka"],"tracked_job_id":"t-7"}`))
		case "/cover-letter/generate":
			_, _ = w.Write([]byte(`{"cover_letter":"Dear Acme,\nI build APIs.","mode":"template"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return fb, ts
}

func (fb *fakeBackend) body(path string) map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies[path]
}

func TestMatchCommand_ExtractsThenMatches(t *testing.T) {
	isolate(t)
	fb, ts := newFakeBackend(t)
	path := writeFile(t, "posting.html", linkedinPosting)

	out, err := run(t, "match", "--backend-url", ts.URL, "--cv-id", "42", "--html", path,
		"--company", "Acme Corp", "https://www.linkedin.com/jobs/view/9")
	require.NoError(t, err)

	assert.Contains(t, out, "CV MATCH")
	assert.Contains(t, out, "81%")
	assert.Contains(t, out, "Tracked:  t-7")

	sent := fb.body("/jobs/match")
	require.NotNil(t, sent)
	assert.Equal(t, "42", sent["cv_id"])
	assert.Equal(t, "Backend Engineer", sent["job_title"])
	assert.Equal(t, "Acme Corp", sent["company"])
	assert.Equal(t, "linkedin", sent["source"])
	assert.Equal(t, "https://www.linkedin.com/jobs/view/9", sent["job_url"])
}

func TestMatchCommand_SuppliedFieldsAsJSON(t *testing.T) {
	isolate(t)
	_, ts := newFakeBackend(t)
	desc := writeFile(t, "job.txt", "Keep services up.\n\n\n\nOn call.")

	out, err := run(t, "match", "--backend-url", ts.URL, "--cv-id", "42", "--title", "SRE", "--description-file", desc, "--json")
	require.NoError(t, err)

	var resp server.MatchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Keep services up.\n\nOn call.", resp.Job.JobDescription)
	assert.Equal(t, "t-7", resp.Match.TrackedID())
	assert.Len(t, resp.Warnings, 1)
}

func TestMatchCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing cv id", []string{"match", "--description", "x"}, "cv-id"},
		{"nothing to match", []string{"match", "--cv-id", "1"}, "a URL, --html file or job description"},
		{"extraction failure", []string{"match", "--cv-id", "1", "edge://flags"}, "extraction failed"},
		{"both description flags", []string{"match", "--cv-id", "1", "--description", "a", "--description-file", "b"}, "none of the others"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCoverLetterCommand(t *testing.T) {
	isolate(t)
	fb, ts := newFakeBackend(t)

	out, err := run(t, "cover-letter", "--backend-url", ts.URL, "--cv-id", "42", "--job-id", "t-7",
		"--title", "Backend Engineer", "--company", "Acme", "--description", "Build APIs.")
	require.NoError(t, err)

	assert.Contains(t, out, "Mode: template")
	assert.True(t, strings.HasSuffix(out, "I build APIs.\n"))
	assert.Equal(t, backend.DefaultTone, fb.body("/cover-letter/generate")["tone"])
}

func TestCoverLetterCommand_Validation(t *testing.T) {
	isolate(t)
	_, ts := newFakeBackend(t)

	_, err := run(t, "cover-letter", "--backend-url", ts.URL, "--cv-id", "42", "--job-id", "t-7", "--title", "SRE")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "job_description is required")
}
