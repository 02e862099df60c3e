package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/observability"
	"github.com/jonathan/job-extractor/internal/server"
)

// jobFlags are the job fields a user may supply instead of, or on top of,
// extracting them.
type jobFlags struct {
	title           string
	company         string
	description     string
	descriptionFile string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Job title")
	cmd.Flags().StringVar(&f.company, "company", "", "Company name")
	cmd.Flags().StringVar(&f.description, "description", "", "Job description text")
	cmd.Flags().StringVar(&f.descriptionFile, "description-file", "", "File containing the job description")
	cmd.MarkFlagsMutuallyExclusive("description", "description-file")
}

// job returns the supplied fields normalized the same way extracted ones are.
func (f *jobFlags) job() (extract.Job, error) {
	desc := f.description
	if f.descriptionFile != "" {
		data, err := os.ReadFile(f.descriptionFile)
		if err != nil {
			return extract.Job{}, fmt.Errorf("failed to read description file: %w", err)
		}
		desc = string(data)
	}
	return extract.Job{
		JobTitle:       extract.Normalize(f.title),
		Company:        extract.Normalize(f.company),
		JobDescription: extract.Truncate(extract.Normalize(desc), extract.MaxDescriptionLength),
	}, nil
}

func newMatchCmd(a *app) *cobra.Command {
	var (
		cvID     string
		location string
		htmlFile string
		asJSON   bool
		fields   jobFlags
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a CV against a job posting",
		Long: `Extract a job posting (unless its description is supplied) and send it to
the CV matching service. Supplied fields win over extracted ones. A successful
match also tracks the job, and the tracked id can be used with cover-letter.`,
		Example: `  job_extractor match --cv-id 42 https://www.linkedin.com/jobs/view/123
  job_extractor match --cv-id 42 --title "SRE" --company Acme --description-file job.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				location = argLocation(args[0])
			}
			job, err := fields.job()
			if err != nil {
				return err
			}
			if job.JobDescription == "" && location == "" && htmlFile == "" {
				return fmt.Errorf("a URL, --html file or job description must be provided")
			}

			job, err = a.completeJob(cmd.Context(), job, location, htmlFile)
			if err != nil {
				return err
			}

			relay, err := a.newRelay()
			if err != nil {
				return err
			}
			req := backend.NewMatchRequest(cvID, job, location)
			match, err := relay.Match(cmd.Context(), req)
			if err != nil {
				return err
			}

			resp := server.MatchResponse{Job: job, Match: match, Warnings: req.Warnings()}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintMatch(job, match, resp.Warnings)
			return nil
		},
	}

	cmd.Flags().StringVar(&cvID, "cv-id", "", "Id of the stored CV to match (required)")
	cmd.Flags().StringVar(&htmlFile, "html", "", "Saved HTML file of the posting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	fields.register(cmd)
	_ = cmd.MarkFlagRequired("cv-id")
	return cmd
}

// completeJob extracts the posting when no description was supplied and
// fills the fields the user left empty.
func (a *app) completeJob(ctx context.Context, job extract.Job, location, htmlFile string) (extract.Job, error) {
	if job.JobDescription != "" {
		return job, nil
	}

	in := extractInput{Location: location}
	if htmlFile != "" {
		inputs, err := collectInputs(nil, []string{htmlFile}, location)
		if err != nil {
			return job, err
		}
		in = inputs[0]
	}

	events, err := a.runExtract(ctx, []extractInput{in})
	if err != nil {
		return job, err
	}
	resp := events[0].Response
	if !resp.OK {
		return job, fmt.Errorf("extraction failed: %s", resp.Error)
	}

	extracted := *resp.Job
	if job.JobTitle == "" {
		job.JobTitle = extracted.JobTitle
	}
	if job.Company == "" {
		job.Company = extracted.Company
	}
	job.JobDescription = extracted.JobDescription
	return job, nil
}

func newCoverLetterCmd(a *app) *cobra.Command {
	var (
		req    backend.CoverLetterRequest
		asJSON bool
		fields jobFlags
	)

	cmd := &cobra.Command{
		Use:   "cover-letter",
		Short: "Generate a cover letter for a tracked job",
		Long: `Ask the matching service for a cover letter. The job must have been tracked
by a previous match; pass its id with --job-id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := fields.job()
			if err != nil {
				return err
			}
			req.JobTitle = job.JobTitle
			req.Company = job.Company
			req.JobDescription = job.JobDescription

			relay, err := a.newRelay()
			if err != nil {
				return err
			}
			letter, err := relay.GenerateCoverLetter(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), server.CoverLetterResponse{CoverLetterResponse: letter, Warnings: req.Warnings()})
			}
			for _, w := range req.Warnings() {
				a.logger.Warn(w)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintCoverLetter(letter)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.CVID, "cv-id", "", "Id of the stored CV (required)")
	cmd.Flags().StringVar(&req.JobID, "job-id", "", "Tracked job id returned by match (required)")
	cmd.Flags().StringVar(&req.Tone, "tone", backend.DefaultTone, "Letter tone")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	fields.register(cmd)
	_ = cmd.MarkFlagRequired("cv-id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
