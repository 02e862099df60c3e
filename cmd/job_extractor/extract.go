package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/messaging"
	"github.com/jonathan/job-extractor/internal/observability"
	"github.com/jonathan/job-extractor/internal/server"
)

// extractInput is one page to extract. HTML, when set, is used instead of
// loading Location.
type extractInput struct {
	Location string
	HTML     string
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		htmlFiles []string
		location  string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "extract [url|file ...]",
		Short: "Extract job fields from one or more pages",
		Long: `Extract the job title, company and description from job posting pages.

Arguments are URLs or paths to saved HTML files. Saved pages can also be given
with --html; --location then names the URL they were saved from so the right
site profile is used.`,
		Example: `  job_extractor extract https://www.linkedin.com/jobs/view/123
  job_extractor extract --render https://www.indeed.com/viewjob?jk=abc
  job_extractor extract --html posting.html --location https://www.glassdoor.com/job-listing/x --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := collectInputs(args, htmlFiles, location)
			if err != nil {
				return err
			}
			events, err := a.runExtract(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				var encErr error
				if len(events) == 1 {
					encErr = enc.Encode(events[0].Response)
				} else {
					encErr = enc.Encode(events)
				}
				if encErr != nil {
					return fmt.Errorf("failed to write output: %w", encErr)
				}
			} else {
				printer := observability.NewPrinter(out)
				for _, ev := range events {
					printer.PrintExtraction(ev.URL, ev.Response)
				}
			}

			failed := 0
			for _, ev := range events {
				if !ev.Response.OK {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d extractions failed", failed, len(events))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&htmlFiles, "html", nil, "Saved HTML file to extract from (repeatable)")
	cmd.Flags().StringVar(&location, "location", "", "URL the --html files were saved from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the message responses as JSON")
	cmd.Flags().Int("concurrency", 4, "Pages extracted in parallel")
	a.bindFlags(cmd.Flags(), map[string]string{"extract.concurrency": "concurrency"})
	return cmd
}

// collectInputs turns arguments and --html files into inputs. Arguments that
// name an existing file become file:// URLs; arguments without a scheme are
// treated as https URLs.
func collectInputs(args, htmlFiles []string, location string) ([]extractInput, error) {
	if len(args) == 0 && len(htmlFiles) == 0 {
		return nil, fmt.Errorf("at least one URL, file or --html must be provided")
	}

	inputs := make([]extractInput, 0, len(args)+len(htmlFiles))
	for _, arg := range args {
		inputs = append(inputs, extractInput{Location: argLocation(arg)})
	}
	for _, path := range htmlFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read HTML file: %w", err)
		}
		loc := location
		if loc == "" {
			loc = fileURL(path)
		}
		inputs = append(inputs, extractInput{Location: loc, HTML: string(data)})
	}
	return inputs, nil
}

func argLocation(arg string) string {
	if strings.Contains(arg, "://") || strings.HasPrefix(strings.ToLower(arg), "about:") {
		return arg
	}
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return fileURL(arg)
	}
	return "https://" + arg
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

// runExtract extracts every input, at most extract.concurrency at a time,
// and returns the results in input order.
func (a *app) runExtract(ctx context.Context, inputs []extractInput) ([]server.StreamEvent, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	needsLoad := false
	for _, in := range inputs {
		needsLoad = needsLoad || in.HTML == ""
	}
	loader, stopBrowser, err := a.newLoader(ctx, store, a.cfg.Extract.Render && needsLoad)
	if err != nil {
		return nil, err
	}
	defer stopBrowser()

	handler, closeHandler, err := a.newHandler(ctx)
	if err != nil {
		return nil, err
	}
	defer closeHandler()

	events := make([]server.StreamEvent, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Extract.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			events[i] = server.StreamEvent{
				Index:    i,
				URL:      in.Location,
				Response: a.extractOne(gctx, loader, handler, in),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func (a *app) extractOne(ctx context.Context, loader *fetch.Loader, handler *messaging.Handler, in extractInput) messaging.Response {
	var (
		page fetch.Page
		err  error
	)
	if in.HTML != "" {
		if err = fetch.CheckLocation(in.Location); err == nil {
			page, err = fetch.FromHTML(in.HTML, in.Location)
		}
	} else {
		page, err = loader.Load(ctx, in.Location, a.cfg.Extract.Render)
	}
	if err != nil {
		a.logger.Warn("failed to open page", "url", in.Location, "error", err)
		return messaging.Failure(err)
	}
	defer loader.Release(context.WithoutCancel(ctx), page)

	return handler.Handle(ctx, page, messaging.Request{Action: messaging.ActionExtractJob})
}
