package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/logging"
	"github.com/jonathan/job-extractor/internal/messaging"
)

var _ messaging.Enricher = (*Enricher)(nil)

type stubClient struct {
	response string
	err      error
	prompts  []string
	tiers    []ModelTier
}

func (s *stubClient) GenerateJSON(_ context.Context, prompt string, tier ModelTier) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.tiers = append(s.tiers, tier)
	return s.response, s.err
}

func (s *stubClient) GetModel(tier ModelTier) string { return DefaultConfig().GetModel(tier) }

func (s *stubClient) Close() error { return nil }

const posting = "Example Corp is hiring a Staff Engineer.\n\nBuild reliable systems."

func TestEnricher_Enrich(t *testing.T) {
	tests := []struct {
		name     string
		job      extract.Job
		response string
		want     extract.Job
		calls    int
	}{
		{
			name:     "fills both missing fields",
			job:      extract.Job{JobDescription: posting},
			response: `{"job_title": "Staff Engineer", "company": "Example Corp"}`,
			want:     extract.Job{JobTitle: "Staff Engineer", Company: "Example Corp", JobDescription: posting},
			calls:    1,
		},
		{
			name:     "never overwrites a present field",
			job:      extract.Job{JobTitle: "Principal Engineer", JobDescription: posting},
			response: `{"job_title": "Staff Engineer", "company": "Example Corp"}`,
			want:     extract.Job{JobTitle: "Principal Engineer", Company: "Example Corp", JobDescription: posting},
			calls:    1,
		},
		{
			name:     "discards values not in the description",
			job:      extract.Job{JobDescription: posting},
			response: `{"job_title": "Staff Engineer", "company": "Initech"}`,
			want:     extract.Job{JobTitle: "Staff Engineer", JobDescription: posting},
			calls:    1,
		},
		{
			name:     "normalizes returned values",
			job:      extract.Job{JobDescription: posting},
			response: "```json\n{\"job_title\": \"  Staff Engineer \", \"company\": \"\"}\n```",
			want:     extract.Job{JobTitle: "Staff Engineer", JobDescription: posting},
			calls:    1,
		},
		{
			name:  "nothing missing skips the model",
			job:   extract.Job{JobTitle: "a", Company: "b", JobDescription: posting},
			want:  extract.Job{JobTitle: "a", Company: "b", JobDescription: posting},
			calls: 0,
		},
		{
			name:  "no description skips the model",
			job:   extract.Job{},
			want:  extract.Job{},
			calls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{response: CleanJSONBlock(tt.response)}
			e := NewEnricher(client, WithEnricherLogger(logging.Discard()))

			got, err := e.Enrich(context.Background(), tt.job)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, client.prompts, tt.calls)
		})
	}
}

func TestEnricher_Errors(t *testing.T) {
	job := extract.Job{JobDescription: posting}

	tests := []struct {
		name     string
		client   *stubClient
		contains string
	}{
		{"client failure", &stubClient{err: errors.New("quota exceeded")}, "failed to enrich job fields"},
		{"schema mismatch", &stubClient{response: `{"job_title": 7}`}, "unusable fields"},
		{"not json", &stubClient{response: `sorry`}, "unusable fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEnricher(tt.client, WithEnricherLogger(logging.Discard())).Enrich(context.Background(), job)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, job, got, "job is returned unchanged on failure")
		})
	}
}

func TestEnricher_Tier(t *testing.T) {
	client := &stubClient{response: `{"job_title": "", "company": ""}`}

	_, err := NewEnricher(client).Enrich(context.Background(), extract.Job{JobDescription: posting})
	require.NoError(t, err)
	_, err = NewEnricher(client, WithTier(TierStandard)).Enrich(context.Background(), extract.Job{JobDescription: posting})
	require.NoError(t, err)

	assert.Equal(t, []ModelTier{TierLite, TierStandard}, client.tiers)
}

func TestBuildFieldsPrompt(t *testing.T) {
	prompt := BuildFieldsPrompt(extract.Job{Company: "Example Corp", JobDescription: posting})

	assert.Contains(t, prompt, `"job_title": string`)
	assert.Contains(t, prompt, `The company is already known: "Example Corp"`)
	assert.NotContains(t, prompt, "The job title is already known")
	assert.Contains(t, prompt, "Build reliable systems.")
}

func TestCheckPrompts(t *testing.T) {
	assert.NoError(t, CheckPrompts())
}

func TestBuildFieldsPrompt_BothKnown(t *testing.T) {
	prompt := BuildFieldsPrompt(extract.Job{JobTitle: "SRE", Company: "Acme", JobDescription: "Posting with {{.Value}} in it."})

	assert.Contains(t, prompt, `The job title is already known: "SRE"`)
	assert.Contains(t, prompt, `The company is already known: "Acme"`)
	assert.Contains(t, prompt, "Posting with {{.Value}} in it.")
	assert.NotContains(t, prompt, "{{.KnownFields}}")
}

func TestBuildFieldsPrompt_TruncatesDescription(t *testing.T) {
	long := make([]rune, maxPromptDescription+500)
	for i := range long {
		long[i] = 'x'
	}
	prompt := BuildFieldsPrompt(extract.Job{JobDescription: string(long)})

	assert.NotContains(t, prompt, string(long))
	assert.Contains(t, prompt, string(long[:maxPromptDescription]))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = NewClient(context.Background(), &Config{Provider: "openai"}, "k")
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
