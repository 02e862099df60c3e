package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/observability"
)

func newProfilesCmd(_ *app) *cobra.Command {
	var (
		format string
		check  bool
		site   string
	)

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Show the per-site selector profiles",
		Long: `Print the selector profiles in resolution order. Use --site to show the
profile a hostname resolves to, and --check to verify every selector compiles.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := extract.Profiles()
			if site != "" {
				profiles = []extract.Profile{extract.Resolve(site)}
			}

			if check {
				var errs []error
				for _, p := range profiles {
					errs = append(errs, p.Validate())
				}
				if err := errors.Join(errs...); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(profiles); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(profiles)
			case "table":
				observability.NewPrinter(out).PrintProfiles(profiles)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want yaml, json or table)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, json or table")
	cmd.Flags().BoolVar(&check, "check", false, "Fail if any selector does not compile")
	cmd.Flags().StringVar(&site, "site", "", "Show only the profile this hostname resolves to")
	return cmd
}
