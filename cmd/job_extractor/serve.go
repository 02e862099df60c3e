package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start an HTTP server that answers extraction messages, streams batch
extractions and relays jobs to the CV matching service.

The database and backend are optional: without DATABASE_URL pages are not
cached and no history is kept; without a backend URL /match and /cover-letter
answer 503.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}

	cmd.Flags().Int("port", 8080, "Port to listen on")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable; default *)")
	a.bindFlags(cmd.Flags(), map[string]string{
		"server.port":         "port",
		"server.cors_origins": "cors-origin",
	})
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	loader, stopBrowser, err := a.newLoader(ctx, store, a.cfg.Extract.Render)
	if err != nil {
		return err
	}
	defer stopBrowser()

	handler, closeHandler, err := a.newHandler(ctx)
	if err != nil {
		return err
	}
	defer closeHandler()

	deps := server.Deps{
		Handler: handler,
		Loader:  loader,
		Logger:  a.logger,
	}
	// Optional dependencies stay untyped nil when absent.
	if store != nil {
		deps.Store = store
	}
	if a.cfg.Backend.BaseURL != "" {
		relay, err := a.newRelay()
		if err != nil {
			return err
		}
		deps.Relay = relay
	}

	srv, err := server.New(server.Config{
		Port:         a.cfg.Server.Port,
		RateLimit:    a.cfg.Server.RateLimit,
		RateBurst:    a.cfg.Server.RateBurst,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		Render:       a.cfg.Extract.Render,
		Concurrency:  a.cfg.Extract.Concurrency,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
