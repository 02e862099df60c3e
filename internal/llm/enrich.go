package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/prompts"
	"github.com/jonathan/job-extractor/internal/schemas"
)

// maxPromptDescription bounds how much of the description is sent to the
// model. Titles and employer names sit near the top of a posting.
const maxPromptDescription = 4000

var enrichmentPrompts = prompts.MustLoad("enrichment.json")

// promptSlots are the templates BuildFieldsPrompt renders and the values it
// supplies to each.
var promptSlots = map[string][]string{
	"fill-job-fields": {"KnownFields", "Posting"},
	"known-title":     {"Value"},
	"known-company":   {"Value"},
}

// CheckPrompts verifies the enrichment templates match what BuildFieldsPrompt
// fills in.
func CheckPrompts() error {
	return enrichmentPrompts.Check(promptSlots)
}

// Enricher fills an empty job title or company by asking the model to read
// them out of the description.
type Enricher struct {
	client Client
	tier   ModelTier
	logger *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithTier selects the model tier. Defaults to TierLite.
func WithTier(tier ModelTier) EnricherOption {
	return func(e *Enricher) { e.tier = tier }
}

// WithEnricherLogger sets the logger.
func WithEnricherLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher creates an Enricher backed by client.
func NewEnricher(client Client, opts ...EnricherOption) *Enricher {
	e := &Enricher{client: client, tier: TierLite, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type jobFields struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
}

// Enrich returns job with an empty JobTitle or Company filled in when the
// model finds one in the description. Non-empty fields and the description
// are never changed. Values the model returns that do not appear in the
// description are discarded.
func (e *Enricher) Enrich(ctx context.Context, job extract.Job) (extract.Job, error) {
	if job.JobDescription == "" || (job.JobTitle != "" && job.Company != "") {
		return job, nil
	}

	prompt := BuildFieldsPrompt(job)
	raw, err := e.client.GenerateJSON(ctx, prompt, e.tier)
	if err != nil {
		return job, fmt.Errorf("failed to enrich job fields: %w", err)
	}
	if err := schemas.Validate(schemas.JobFields, []byte(raw)); err != nil {
		return job, fmt.Errorf("model returned unusable fields: %w", err)
	}

	var fields jobFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return job, fmt.Errorf("failed to parse model output: %w", err)
	}

	out := job
	if out.JobTitle == "" {
		out.JobTitle = e.grounded("job_title", fields.JobTitle, job.JobDescription)
	}
	if out.Company == "" {
		out.Company = e.grounded("company", fields.Company, job.JobDescription)
	}
	return out, nil
}

// grounded returns value normalized, or "" when it is not in description.
func (e *Enricher) grounded(field, value, description string) string {
	value = extract.Normalize(value)
	if value == "" {
		return ""
	}
	if !strings.Contains(strings.ToLower(description), strings.ToLower(value)) {
		e.logger.Debug("discarding enriched value not present in description", "field", field, "value", value)
		return ""
	}
	return value
}

// BuildFieldsPrompt constructs the prompt asking for the fields job is
// missing.
func BuildFieldsPrompt(job extract.Job) string {
	var known strings.Builder
	if job.JobTitle != "" {
		known.WriteString(render("known-title", map[string]string{"Value": fmt.Sprintf("%q", job.JobTitle)}))
	}
	if job.Company != "" {
		known.WriteString(render("known-company", map[string]string{"Value": fmt.Sprintf("%q", job.Company)}))
	}

	return render("fill-job-fields", map[string]string{
		"KnownFields": known.String(),
		"Posting":     extract.Truncate(job.JobDescription, maxPromptDescription),
	})
}

// render fills a template listed in promptSlots; CheckPrompts guarantees it
// exists.
func render(name string, data map[string]string) string {
	out, err := enrichmentPrompts.Render(name, data)
	if err != nil {
		panic(err)
	}
	return out
}
