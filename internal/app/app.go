// Package app wires configuration to adapters and use cases.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	_ "github.com/lib/pq"

	"filingscout/internal/config"
	"filingscout/internal/domain"
	"filingscout/internal/feed"
	"filingscout/internal/infrastructure/httpapi"
	"filingscout/internal/infrastructure/llm"
	"filingscout/internal/infrastructure/nse"
	"filingscout/internal/infrastructure/pdf"
	"filingscout/internal/infrastructure/scheduler"
	"filingscout/internal/infrastructure/storage"
	"filingscout/internal/infrastructure/summarizer"
	"filingscout/internal/infrastructure/whatsapp"
	"filingscout/internal/logging"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
	"filingscout/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance. Without a database DSN the
// stores fall back to process memory, which suits dry runs and tests but
// forgets the baseline between invocations.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	// The API fetcher and quote client share one cookie jar so the quote
	// endpoint rides the primed session.
	jar, _ := cookiejar.New(nil)
	feedClient := &http.Client{Timeout: 30 * time.Second, Jar: jar}

	registry := feed.NewRegistry()
	registry.Register(nse.NewAPIFetcher(cfg.Feed, feedClient))
	registry.Register(nse.NewHTMLScanner(cfg.Feed, nil))

	source := feed.NewStrategySource(registry, cfg.Feed.Strategies, baseLogger.With("component", "source"))

	var (
		db        *sql.DB
		baselines ports.BaselineStore
		jobs      ports.JobStore
		contacts  ports.RecipientDirectory
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store := storage.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		baselines, jobs, contacts = store, store, store
	} else {
		baseLogger.Warn("no database configured, state will not survive restarts")
		mem := storage.NewMemoryStore()
		baselines, jobs, contacts = mem, mem, mem
	}

	var quotes ports.QuoteProvider
	if cfg.Feed.Quotes {
		quotes = nse.NewQuoteClient(cfg.Feed, feedClient)
	}

	var primary ports.Summarizer
	if cfg.ChatGPT.APIKey != "" {
		primary = llm.NewChatGPTSummarizer(cfg.ChatGPT)
	}

	tracker := usecase.NewTracker(usecase.TrackerDeps{
		Jobs:       jobs,
		Downloader: pdf.NewDownloader(nil, cfg.Feed.UserAgent),
		Extractor:  pdf.NewExtractor(baseLogger.With("component", "extractor")),
		Primary:    primary,
		Fallback:   summarizer.NewHeuristic(),
		Quotes:     quotes,
		Logger:     baseLogger.With("component", "tracker"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Normalizer:  normalize.New(cfg.Feed.BaseURL),
		Baseline:    baselines,
		Tracker:     tracker,
		Recipients:  contacts,
		Notifier:    whatsapp.NewNotifier(cfg.WhatsApp),
		DryRun:      whatsapp.NewDryRun(baseLogger.With("component", "notifier")),
		Concurrency: cfg.Pipeline.Concurrency,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline, db: db}, nil
}

// DefaultQuery returns the feed query derived from configuration.
func (a *Application) DefaultQuery() ports.FeedQuery {
	return ports.FeedQuery{Index: a.cfg.Feed.Index}
}

// RunOnce executes a single cycle and returns its report.
func (a *Application) RunOnce(ctx context.Context, opts usecase.RunOptions) (domain.CycleReport, error) {
	return a.pipeline.Run(ctx, opts)
}

// Serve runs the interval scheduler and the HTTP trigger endpoint until the
// context is cancelled.
func (a *Application) Serve(ctx context.Context, opts usecase.RunOptions) error {
	driver := scheduler.NewIntervalScheduler(
		a.cfg.Scheduler.IntervalDuration(), a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, opts)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop(context.Background())

	server := httpapi.NewServer(a.cfg.HTTP.BindAddr, a.pipeline, opts.Query,
		a.logger.With("component", "http"))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.HTTP.BindAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
