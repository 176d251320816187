// Package pipeline runs a report end to end: page harvest, ledger stages,
// analyzers and the store load, with job progress and metrics.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/config"
	"github.com/dvloznov/wechat-ledger/internal/gcsuploader"
	"github.com/dvloznov/wechat-ledger/internal/harvest"
	"github.com/dvloznov/wechat-ledger/internal/jobs"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
	"github.com/dvloznov/wechat-ledger/internal/loader"
	"github.com/dvloznov/wechat-ledger/internal/logger"
	"github.com/dvloznov/wechat-ledger/internal/metrics"
	"github.com/dvloznov/wechat-ledger/internal/store"
	"github.com/dvloznov/wechat-ledger/internal/workbook"
)

// Result describes a finished report run.
type Result struct {
	Report    string
	OutputDir string
	Artifacts []string
	Tables    []loader.TableResult
	Records   int
}

// Runner executes report jobs with shared configuration and collaborators.
type Runner struct {
	cfg       *config.Config
	harvester *harvest.Harvester
	jobs      jobs.JobStore
	storage   gcsuploader.StorageService
	metrics   *metrics.Collector
	openStore StoreOpener
}

// Option customises a Runner.
type Option func(*Runner)

// WithJobStore records stage and progress of each run in the registry.
func WithJobStore(s jobs.JobStore) Option {
	return func(r *Runner) { r.jobs = s }
}

// WithStorage sets the service used for gs:// inputs.
func WithStorage(s gcsuploader.StorageService) Option {
	return func(r *Runner) { r.storage = s }
}

// WithMetrics records stage metrics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithStoreOpener replaces the configured store backend.
func WithStoreOpener(open StoreOpener) Option {
	return func(r *Runner) { r.openStore = open }
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		harvester: harvest.New(cfg.Harvest.Workers),
		storage:   gcsuploader.NewGCSStorageService(),
	}
	r.openStore = func(ctx context.Context, report, databaseDir string) (store.Store, error) {
		return store.Open(ctx, cfg.Store, databaseDir, report)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs a queued job. It satisfies jobs.JobHandler.
func (r *Runner) Handle(ctx context.Context, job *jobs.ReportJob) error {
	_, err := r.Run(ctx, job)
	return err
}

// Run executes every stage for job.InputDir. An empty job.ReportName is
// derived from the input. On failure the returned error is a *StageError.
func (r *Runner) Run(ctx context.Context, job *jobs.ReportJob) (*Result, error) {
	report := ReportName(job.InputDir, job.ReportName)
	job.ReportName = report
	ctx = logger.WithReport(ctx, report)
	log := logger.FromContext(ctx)

	outDir, logsDir, dbDir := r.cfg.ReportDirs(report)
	state := &PipelineState{
		Report:      report,
		InputDir:    job.InputDir,
		OutputDir:   outDir,
		LogsDir:     logsDir,
		DatabaseDir: dbDir,
	}

	p := NewReportPipeline(r.harvester, r.storage, r.openStore, r.cfg.Export.Workbook).
		OnStart(func(ctx context.Context, stage Stage) {
			r.progress(ctx, job, stage.Name, stage.Progress)
		}).
		OnDone(func(ctx context.Context, stage Stage, elapsed time.Duration, rows int, err error) {
			if r.metrics != nil {
				r.metrics.ObserveStage(report, stage.Name, elapsed, rows, err)
			}
		})

	log.Info().Str("input", job.InputDir).Msg("Starting report")
	err := p.Execute(ctx, state)
	r.finishMetrics(ctx, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("records", len(state.Records)).
		Int("artifacts", len(state.Artifacts)).
		Msg("Report completed")

	return &Result{
		Report:    report,
		OutputDir: outDir,
		Artifacts: state.Artifacts,
		Tables:    state.Tables,
		Records:   len(state.Records),
	}, nil
}

func (r *Runner) progress(ctx context.Context, job *jobs.ReportJob, stage string, pct int) {
	job.Stage, job.Progress = stage, pct
	if r.jobs == nil || job.JobID == "" {
		return
	}
	if err := r.jobs.UpdateProgress(ctx, job.JobID, stage, pct); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to update job progress")
	}
}

func (r *Runner) finishMetrics(ctx context.Context, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveRun(err)
	if r.cfg.Paths.MetricsFile == "" {
		return
	}
	if werr := r.metrics.WriteTextfile(r.cfg.Paths.MetricsFile); werr != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(werr).Msg("Failed to write metrics file")
	}
}

// Analyze rebuilds the analysis tables of an existing ledger into outDir.
func Analyze(ctx context.Context, ledgerPath, outDir string) ([]string, error) {
	t, err := artifact.ReadFile(ledgerPath)
	if err != nil {
		return nil, &StageError{Stage: StageTransfer, Err: err}
	}
	records, err := ledger.RecordsFromTable(t)
	if err != nil {
		return nil, &StageError{Stage: StageTransfer, Err: fmt.Errorf("%s: %w", ledgerPath, err)}
	}

	state := &PipelineState{OutputDir: outDir, Records: records}
	if err := NewAnalysisPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Artifacts, nil
}

// ExportWorkbook writes <outputDir>/<report>.xlsx with one sheet per final
// artifact present in outputDir.
func ExportWorkbook(outputDir, report string) (string, error) {
	var sheets []workbook.Sheet
	for _, name := range []string{LedgerFile, TransferFile, AmountFile} {
		t, err := artifact.ReadFile(filepath.Join(outputDir, name))
		if err != nil {
			return "", err
		}
		sheets = append(sheets, workbook.Sheet{Name: strings.TrimSuffix(name, filepath.Ext(name)), Table: t})
	}

	out := filepath.Join(outputDir, report+".xlsx")
	if err := workbook.Export(out, sheets); err != nil {
		return "", err
	}
	return out, nil
}

// ReportName returns explicit when set. Otherwise it is the last element of
// input with a trailing "-files" removed.
func ReportName(input, explicit string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}

	var base string
	if gcsuploader.IsURI(input) {
		base = path.Base(strings.TrimRight(input, "/"))
	} else {
		base = filepath.Base(filepath.Clean(input))
	}
	base = strings.TrimSuffix(base, reportSuffix)
	if base == "" || base == "." || base == "/" || base == string(filepath.Separator) {
		return "report"
	}
	return base
}
