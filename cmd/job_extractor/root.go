package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/llm"
	"github.com/jonathan/job-extractor/internal/logging"
	"github.com/jonathan/job-extractor/internal/messaging"
)

// app carries state shared by every command of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "job_extractor",
		Short: "Job posting field extractor",
		Long: `job_extractor reads job posting pages from LinkedIn, Indeed, Glassdoor and
other sites and extracts the job title, company and description. It can also
relay extracted jobs to a CV matching service and serve everything over HTTP.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  func(*cobra.Command, []string) error { return a.load() },
		PersistentPostRunE: func(*cobra.Command, []string) error { return a.close() },
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default is ./job_extractor.yaml when present)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("database-url", "", "PostgreSQL URL for the page cache and extraction history")
	pf.Bool("render", false, "Render pages in headless Chrome before extracting")
	pf.Duration("max-wait", 0, "Cap on the per-site readiness wait (0 keeps site defaults)")
	pf.String("chrome-path", "", "Chrome binary to use for rendering")
	pf.String("backend-url", "", "Base URL of the CV matching service")
	a.bindFlags(pf, map[string]string{
		"log.level":           "log-level",
		"log.format":          "log-format",
		"database.url":        "database-url",
		"extract.render":      "render",
		"extract.max_wait":    "max-wait",
		"extract.chrome_path": "chrome-path",
		"backend.base_url":    "backend-url",
	})

	cmd.AddCommand(
		newExtractCmd(a),
		newServeCmd(a),
		newMatchCmd(a),
		newCoverLetterCmd(a),
		newProfilesCmd(a),
	)
	return cmd
}

// bindFlags binds config keys to flags so a set flag overrides file and
// environment values.
func (a *app) bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// openStore connects to the database when one is configured. It returns a
// nil *db.DB otherwise.
func (a *app) openStore(ctx context.Context) (*db.DB, error) {
	if a.cfg.Database.URL == "" {
		a.logger.Debug("no database configured; page cache and history disabled")
		return nil, nil
	}
	store, err := db.Connect(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if n, err := store.DeleteExpiredPages(ctx); err != nil {
		a.logger.Warn("failed to prune page cache", "error", err)
	} else if n > 0 {
		a.logger.Debug("pruned expired pages", "count", n)
	}
	return store, nil
}

// newLoader builds the page loader. A browser is started only when render
// is set; the returned cleanup stops it.
func (a *app) newLoader(ctx context.Context, store *db.DB, render bool) (*fetch.Loader, func(), error) {
	opts := fetch.DefaultOptions()
	opts.Timeout = a.cfg.Fetch.Timeout
	if a.cfg.Fetch.UserAgent != "" {
		opts.UserAgent = a.cfg.Fetch.UserAgent
	}
	if a.cfg.Fetch.HostRate > 0 {
		opts.Limiter = fetch.NewHostLimiter(a.cfg.Fetch.HostRate, a.cfg.Fetch.HostBurst)
	}

	// A nil *db.DB must not become a non-nil PageStore.
	var pages fetch.PageStore
	if store != nil {
		pages = store
	}
	fetcher := fetch.NewCachedFetcher(pages, &fetch.CachedFetcherConfig{
		CacheTTL:  a.cfg.Database.CacheTTL,
		SkipCache: a.cfg.Database.SkipCache,
		Options:   opts,
		Logger:    a.logger,
	})

	if !render {
		return fetch.NewLoader(fetcher, nil, a.logger), func() {}, nil
	}

	browser, err := fetch.NewBrowser(ctx, &fetch.BrowserOptions{
		NavigationTimeout: a.cfg.Extract.NavigationTimeout,
		UserAgent:         a.cfg.Fetch.UserAgent,
		ExecPath:          a.cfg.Extract.ChromePath,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	cleanup := func() {
		if err := browser.Close(); err != nil {
			a.logger.Warn("failed to close browser", "error", err)
		}
	}
	return fetch.NewLoader(fetcher, browser, a.logger), cleanup, nil
}

// newHandler builds the message handler, with LLM enrichment when enabled.
func (a *app) newHandler(ctx context.Context) (*messaging.Handler, func(), error) {
	extractor := extract.New(
		extract.WithLogger(a.logger),
		extract.WithMaxWait(a.cfg.Extract.MaxWait),
	)
	opts := []messaging.HandlerOption{messaging.WithHandlerLogger(a.logger)}
	cleanup := func() {}

	if a.cfg.LLM.EnrichmentEnabled() {
		if err := llm.CheckPrompts(); err != nil {
			return nil, nil, fmt.Errorf("enrichment prompts are invalid: %w", err)
		}
		llmCfg := llm.DefaultConfig()
		if a.cfg.LLM.Model != "" {
			llmCfg = llmCfg.WithModel(llm.TierLite, a.cfg.LLM.Model)
		}
		client, err := llm.NewClient(ctx, llmCfg, a.cfg.LLM.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		enricher := llm.NewEnricher(client, llm.WithEnricherLogger(a.logger))
		opts = append(opts, messaging.WithEnricher(enricher))
		cleanup = func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("failed to close LLM client", "error", err)
			}
		}
		a.logger.Info("missing-field enrichment enabled", "model", llmCfg.GetModel(llm.TierLite))
	}

	return messaging.NewHandler(extractor, opts...), cleanup, nil
}

// newRelay builds the matching service client.
func (a *app) newRelay() (*backend.Client, error) {
	if a.cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url is not configured")
	}
	return backend.NewClient(backend.Options{
		BaseURL:  a.cfg.Backend.BaseURL,
		APIToken: a.cfg.Backend.APIToken,
		Timeout:  a.cfg.Backend.Timeout,
		Logger:   a.logger,
	})
}
