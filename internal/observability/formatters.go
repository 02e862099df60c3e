// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/messaging"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// previewLines bounds how much of a description is shown
	previewLines = 6
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// shorten cuts s to width characters, marking the cut with "...".
func shorten(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return extract.Truncate(s, width-3) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, shorten(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, shorten(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtraction outputs the reply to an extract_job message for location.
func (p *Printer) PrintExtraction(location string, resp messaging.Response) {
	if !resp.OK {
		p.printBox("EXTRACTION FAILED", fmt.Sprintf("URL:    %s\nError:  %s", location, resp.Error))
		return
	}
	if resp.Job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("URL:      %s\n", location))
	if resp.Debug != nil {
		ready := "no"
		if resp.Debug.Ready {
			ready = "yes"
		}
		sb.WriteString(fmt.Sprintf("Site:     %s (ready: %s, %dms)\n", resp.Debug.Site, ready, resp.Debug.ElapsedMS))
		if resp.Debug.Enriched {
			sb.WriteString("          missing fields filled by LLM\n")
		}
	}
	sb.WriteString("\n")
	writeJob(&sb, *resp.Job)

	p.printBox("EXTRACTED JOB", strings.TrimSuffix(sb.String(), "\n"))
}

func writeJob(sb *strings.Builder, job extract.Job) {
	sb.WriteString(fmt.Sprintf("Title:    %s\n", orMissing(job.JobTitle)))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", orMissing(job.Company)))

	if job.JobDescription == "" {
		sb.WriteString("Description: (missing)\n")
		return
	}
	sb.WriteString(fmt.Sprintf("Description (%d chars):\n", utf8.RuneCountInString(job.JobDescription)))
	lines := nonEmptyLines(job.JobDescription)
	count := min(len(lines), previewLines)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  %s\n", lines[i]))
	}
	if len(lines) > previewLines {
		sb.WriteString(fmt.Sprintf("  ... and %d more lines\n", len(lines)-previewLines))
	}
}

func orMissing(s string) string {
	if s == "" {
		return "(missing)"
	}
	return s
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// PrintMatch outputs a match score with the skills behind it.
func (p *Printer) PrintMatch(job extract.Job, match *backend.MatchResponse, warnings []string) {
	if match == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", orMissing(job.JobTitle)))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", orMissing(job.Company)))
	sb.WriteString(fmt.Sprintf("Score:    %.0f%%  (semantic %.2f, skills %.2f)\n",
		match.MatchScore*100, match.SemanticScore, match.SkillScore))
	if id := match.TrackedID(); id != "" {
		sb.WriteString(fmt.Sprintf("Tracked:  %s\n", id))
	}
	sb.WriteString("\n")

	writeSkills(&sb, "Matching skills", match.OverlappingSkills)
	writeSkills(&sb, "Missing skills", match.MissingSkills)

	for _, w := range warnings {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", w))
	}

	p.printBox("CV MATCH", strings.TrimRight(sb.String(), "\n"))
}

func writeSkills(sb *strings.Builder, label string, skills []string) {
	if len(skills) == 0 {
		return
	}
	sb.WriteString(label + ":\n")
	count := min(len(skills), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", skills[i]))
	}
	if len(skills) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(skills)-maxItemsToShow))
	}
	sb.WriteString("\n")
}

// PrintCoverLetter outputs a generated cover letter in full.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCoverLetter(letter *backend.CoverLetterResponse) {
	if letter == nil {
		return
	}
	header := fmt.Sprintf("Mode: %s", letter.Mode)
	if letter.Note != "" {
		header += "\nNote: " + letter.Note
	}
	p.printBox("COVER LETTER", header)
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, strings.TrimSpace(letter.CoverLetter))
}

// PrintProfiles outputs the site profile table.
func (p *Printer) PrintProfiles(profiles []extract.Profile) {
	if len(profiles) == 0 {
		return
	}

	var sb strings.Builder
	for i, prof := range profiles {
		sb.WriteString(fmt.Sprintf("%s  (wait %s)\n", prof.Site, prof.Wait))
		sb.WriteString(fmt.Sprintf("  title:       %s\n", firstOf(prof.Title)))
		sb.WriteString(fmt.Sprintf("  company:     %s\n", firstOf(prof.Company)))
		sb.WriteString(fmt.Sprintf("  description: %s\n", firstOf(prof.Description)))
		if i < len(profiles)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("SITE PROFILES", strings.TrimSuffix(sb.String(), "\n"))
}

func firstOf(selectors []string) string {
	switch len(selectors) {
	case 0:
		return "-"
	case 1:
		return selectors[0]
	default:
		return fmt.Sprintf("%s (+%d)", selectors[0], len(selectors)-1)
	}
}
