package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/wechat-ledger/internal/config"
	"github.com/dvloznov/wechat-ledger/internal/gcsuploader"
	"github.com/dvloznov/wechat-ledger/internal/jobs"
	"github.com/dvloznov/wechat-ledger/internal/loader"
	"github.com/dvloznov/wechat-ledger/internal/logger"
	"github.com/dvloznov/wechat-ledger/internal/metrics"
	"github.com/dvloznov/wechat-ledger/internal/pipeline"
	"github.com/dvloznov/wechat-ledger/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runReport()
	case "analyze":
		runAnalyze()
	case "load":
		runLoad()
	case "export":
		runExport()
	case "publish":
		runPublish()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("WeChat Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Build a report from a directory of exported chat pages")
	fmt.Println("  analyze   Rebuild the transfer and amount tables from a ledger")
	fmt.Println("  load      Load a ledger and its analysis tables into the store")
	fmt.Println("  export    Export a report's tables as an .xlsx workbook")
	fmt.Println("  publish   Upload a report's output directory to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup parses the shared flags and returns the merged configuration with a
// logger built from it.
func setup(fs *flag.FlagSet) (*config.Config, zerolog.Logger) {
	configPath := fs.String("config", "", "Path to a YAML config file (default $LEDGER_CONFIG)")
	logLevel := fs.String("log-level", "", "Log level override")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	return cfg, logger.NewFromConfig(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

func runReport() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "Directory (or gs:// prefix) holding pageN.html files")
	name := fs.String("name", "", "Report name (defaults to the input directory name without -files)")
	workers := fs.Int("workers", 0, "Page parsing workers (defaults to config)")
	backend := fs.String("store", "", "Store backend override: sqlite, postgres or bigquery")
	workbook := fs.Bool("workbook", false, "Also export an .xlsx workbook")
	cfg, log := setup(fs)

	if *input == "" {
		log.Fatal().Msg("Error: --input is required")
	}
	if *workers > 0 {
		cfg.Harvest.Workers = *workers
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}
	if *workbook {
		cfg.Export.Workbook = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	job := &jobs.ReportJob{InputDir: *input, ReportName: *name}
	res, err := pipeline.NewRunner(cfg, pipeline.WithMetrics(metrics.NewCollector())).Run(ctx, job)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			log.Fatal().Str("stage", stageErr.Stage).Err(stageErr.Err).Msg("Report failed")
		}
		log.Fatal().Err(err).Msg("Report failed")
	}

	fmt.Printf("Report %s completed: %d ledger records\n", res.Report, res.Records)
	for _, a := range res.Artifacts {
		fmt.Printf("  %s\n", a)
	}
	for _, t := range res.Tables {
		fmt.Printf("  table %-10s %d rows\n", t.Name, t.Rows)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	ledgerPath := fs.String("ledger", "", "Path to 流水总表.csv")
	outDir := fs.String("out", "", "Output directory (defaults to the ledger's directory)")
	_, log := setup(fs)

	if *ledgerPath == "" {
		log.Fatal().Msg("Error: --ledger is required")
	}
	if *outDir == "" {
		*outDir = filepath.Dir(*ledgerPath)
	}

	ctx := logger.WithContext(context.Background(), log)
	files, err := pipeline.Analyze(ctx, *ledgerPath, *outDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	for _, f := range files {
		fmt.Println(f)
	}
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	ledgerPath := fs.String("ledger", "", "Path to 流水总表.csv")
	analysisDir := fs.String("analysis-dir", "", "Directory of analysis CSVs (defaults to the ledger's directory)")
	report := fs.String("report", "", "Report name used for the store (defaults to the ledger's directory name)")
	cfg, log := setup(fs)

	if *ledgerPath == "" {
		log.Fatal().Msg("Error: --ledger is required")
	}
	if *analysisDir == "" {
		*analysisDir = filepath.Dir(*ledgerPath)
	}
	if *report == "" {
		*report = filepath.Base(filepath.Dir(*ledgerPath))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	_, _, dbDir := cfg.ReportDirs(*report)
	st, err := store.Open(ctx, cfg.Store, dbDir, *report)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	res, err := loader.Load(ctx, st, *ledgerPath, *analysisDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Load failed")
	}
	for _, t := range res.Tables {
		fmt.Printf("%-10s %6d rows  (%s)\n", t.Name, t.Rows, t.Source)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	report := fs.String("report", "", "Report name")
	dir := fs.String("dir", "", "Report output directory (defaults to <output_dir>/<report>)")
	cfg, log := setup(fs)

	if *report == "" {
		log.Fatal().Msg("Error: --report is required")
	}
	if *dir == "" {
		*dir, _, _ = cfg.ReportDirs(*report)
	}

	path, err := pipeline.ExportWorkbook(*dir, *report)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Exported %s\n", path)
}

func runPublish() {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	report := fs.String("report", "", "Report name")
	bucket := fs.String("bucket", "", "GCS bucket name (defaults to config)")
	cfg, log := setup(fs)

	if *report == "" {
		log.Fatal().Msg("Error: --report is required")
	}
	if *bucket == "" {
		*bucket = cfg.Publish.Bucket
	}
	if *bucket == "" {
		log.Fatal().Msg("Usage: cli publish -report NAME -bucket NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	outDir, _, _ := cfg.ReportDirs(*report)
	prefix := gcsuploader.ObjectName(cfg.Publish.Prefix, *report)

	log.Info().
		Str("bucket", *bucket).
		Str("prefix", prefix).
		Str("dir", outDir).
		Msg("Publishing report to GCS")

	objects, err := gcsuploader.UploadDir(ctx, *bucket, prefix, outDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Publish failed")
	}
	for _, o := range objects {
		fmt.Printf("gs://%s/%s\n", *bucket, o)
	}
}
