package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"VisaDecisions/internal/app"
	"VisaDecisions/internal/config"
	"VisaDecisions/internal/logging"
	"VisaDecisions/internal/usecase"
)

func main() {
	force := flag.Bool("force", false, "run even if the pipeline already ran today")
	skipFetch := flag.Bool("skip-fetch", false, "only process documents already staged")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	opts := usecase.RunOptions{Force: *force, SkipFetch: *skipFetch}
	if err := application.Run(ctx, opts); err != nil {
		logger.Error("application stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
}
