package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"filingscout/internal/app"
	"filingscout/internal/config"
	"filingscout/internal/logging"
	"filingscout/internal/usecase"
)

func main() {
	var (
		limit  = flag.Int("limit", 0, "max jobs to advance this cycle (0 = all)")
		dryRun = flag.Bool("dry-run", false, "log notifications instead of sending")
		send   = flag.Bool("send", false, "actually send notifications in one-shot mode")
		serve  = flag.Bool("serve", false, "run the scheduler and HTTP trigger endpoint")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// One-shot runs stay dry unless -send is given; serve mode sends unless
	// -dry-run is set.
	opts := usecase.RunOptions{
		Query:  application.DefaultQuery(),
		Limit:  *limit,
		DryRun: *dryRun || (!*serve && !*send),
	}

	if *serve {
		if err := application.Serve(ctx, opts); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	report, err := application.RunOnce(ctx, opts)
	if err != nil {
		logger.Error("cycle aborted", "run_id", report.RunID, "error", err)
		os.Exit(1)
	}
	if !report.Clean() {
		logger.Warn("cycle finished with failures",
			"run_id", report.RunID,
			"jobs_failed", report.JobsFailed,
			"send_failed", report.NotificationsFailed,
			"errors", len(report.Errors))
		os.Exit(2)
	}
}
