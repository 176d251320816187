package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/wechat-ledger/internal/config"
	"github.com/dvloznov/wechat-ledger/internal/jobs"
	"github.com/dvloznov/wechat-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/wechat-ledger/internal/logger"
	"github.com/dvloznov/wechat-ledger/internal/metrics"
	"github.com/dvloznov/wechat-ledger/internal/pipeline"
)

// worker builds one report per input directory given on the command line,
// several at a time, and prints a summary of every job at the end.
func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (default $LEDGER_CONFIG)")
	concurrency := flag.Int("concurrency", 0, "Reports processed at once (defaults to config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *concurrency > 0 {
		cfg.Worker.Concurrency = *concurrency
	}
	log := logger.NewFromConfig(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: worker [-config FILE] [-concurrency N] <input-dir>...")
		os.Exit(1)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Worker.QueueSize, cfg.Worker.Concurrency, jobStore)
	runner := pipeline.NewRunner(cfg,
		pipeline.WithJobStore(jobStore),
		pipeline.WithMetrics(metrics.NewCollector()))

	log.Info().
		Int("reports", len(inputs)).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("Starting worker service")

	if err := jobQueue.Start(ctx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	for _, input := range inputs {
		job := &jobs.ReportJob{InputDir: input}
		if err := jobQueue.PublishReport(ctx, job); err != nil {
			log.Error().Err(err).Str("input", input).Msg("Failed to queue report")
		}
	}

	if err := jobQueue.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Interrupted before all reports finished")
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := printSummary(shutdownCtx, jobStore)
	log.Info().Msg("Worker service exited")
	if failed > 0 {
		os.Exit(1)
	}
}

// printSummary lists every job and returns how many did not complete.
func printSummary(ctx context.Context, store jobs.JobStore) int {
	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "list jobs: %v\n", err)
		return 1
	}

	failed := 0
	fmt.Println("\n=== Reports ===")
	for _, j := range all {
		name := j.ReportName
		if name == "" {
			name = pipeline.ReportName(j.InputDir, "")
		}
		fmt.Printf("%-10s %-24s %3d%%  %s\n", j.Status, name, j.Progress, j.InputDir)
		if j.Status != jobs.JobStatusCompleted {
			failed++
			if j.Error != "" {
				fmt.Printf("           %s\n", j.Error)
			}
		}
	}
	return failed
}
