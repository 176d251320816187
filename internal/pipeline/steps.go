package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/wechat-ledger/internal/analysis"
	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/gcsuploader"
	"github.com/dvloznov/wechat-ledger/internal/harvest"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
	"github.com/dvloznov/wechat-ledger/internal/loader"
	"github.com/dvloznov/wechat-ledger/internal/logger"
	"github.com/dvloznov/wechat-ledger/internal/store"
)

// Stage names a step and the job progress announced when it starts.
type Stage struct {
	Name     string
	Progress int
}

// PipelineStep represents a single step in the report pipeline.
type PipelineStep interface {
	Stage() Stage
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps. Each step
// consumes the previous step's complete output and writes its own artifact.
type PipelineState struct {
	Report      string
	InputDir    string
	OutputDir   string
	LogsDir     string
	DatabaseDir string

	Segments []ledger.RawSegment
	Entries  []ledger.Entry
	Records  []ledger.Record
	Tables   []loader.TableResult

	// Artifacts lists every file written, in order.
	Artifacts []string
	// Rows is the row count produced by the step that ran last.
	Rows int
}

func (s *PipelineState) write(path string, t *artifact.Table) error {
	if err := artifact.WriteFile(path, t); err != nil {
		return err
	}
	s.Artifacts = append(s.Artifacts, path)
	s.Rows = len(t.Rows)
	return nil
}

// LedgerPath is where the final ledger is written.
func (s *PipelineState) LedgerPath() string {
	return filepath.Join(s.OutputDir, LedgerFile)
}

// StoreOpener opens the report-scoped store for a load.
type StoreOpener func(ctx context.Context, report, databaseDir string) (store.Store, error)

// Step 1: HarvestStep extracts raw segments from the page files. A gs://
// input is downloaded into the report's logs directory first.
type HarvestStep struct {
	Harvester *harvest.Harvester
	Storage   gcsuploader.StorageService
}

func (s *HarvestStep) Stage() Stage { return Stage{Name: StageHarvest, Progress: 20} }

func (s *HarvestStep) Execute(ctx context.Context, state *PipelineState) error {
	dir := state.InputDir
	if gcsuploader.IsURI(dir) {
		if s.Storage == nil {
			return fmt.Errorf("no storage service configured for %s", dir)
		}
		local := filepath.Join(state.LogsDir, pagesDir)
		if err := os.RemoveAll(local); err != nil {
			return fmt.Errorf("clear %s: %w", local, err)
		}
		if _, err := s.Storage.DownloadPrefix(ctx, dir, local); err != nil {
			return err
		}
		dir = local
	}

	segments, err := s.Harvester.Run(ctx, dir)
	if err != nil {
		return err
	}
	state.Segments = segments
	return state.write(filepath.Join(state.LogsDir, HarvestFile), ledger.SegmentsTable(segments))
}

// Step 2: ParseStep splits segment bodies into timestamped entries.
type ParseStep struct{}

func (s *ParseStep) Stage() Stage { return Stage{Name: StageParse, Progress: 40} }

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Entries = ledger.ParseSegments(ctx, state.Segments)
	return state.write(filepath.Join(state.LogsDir, ParseFile), ledger.EntriesTable(state.Entries))
}

// Step 3: CleanStep rewrites details, drops forwarded entries and duplicates.
type CleanStep struct{}

func (s *CleanStep) Stage() Stage { return Stage{Name: StageClean, Progress: 60} }

func (s *CleanStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Entries = ledger.Clean(ctx, state.Entries)
	return state.write(filepath.Join(state.LogsDir, CleanFile), ledger.EntriesTable(state.Entries))
}

// Step 4: FinalizeStep extracts ids and types and writes the ledger.
type FinalizeStep struct{}

func (s *FinalizeStep) Stage() Stage { return Stage{Name: StageFinalize, Progress: 70} }

func (s *FinalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Records = ledger.FinalizeAll(ctx, state.Entries)
	return state.write(state.LedgerPath(), ledger.LedgerTable(state.Records))
}

// Step 5: TransferStep writes one row per ledger record.
type TransferStep struct{}

func (s *TransferStep) Stage() Stage { return Stage{Name: StageTransfer, Progress: 80} }

func (s *TransferStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.write(filepath.Join(state.OutputDir, TransferFile), analysis.TransferTable(ctx, state.Records))
}

// Step 6: AmountStep writes the per-pair totals.
type AmountStep struct{}

func (s *AmountStep) Stage() Stage { return Stage{Name: StageAmount, Progress: 85} }

func (s *AmountStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.write(filepath.Join(state.OutputDir, AmountFile), analysis.AmountTable(ctx, state.Records))
}

// Step 7: LoadStep replaces the report's tables in the store.
type LoadStep struct {
	Open StoreOpener
}

func (s *LoadStep) Stage() Stage { return Stage{Name: StageLoad, Progress: 90} }

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	st, err := s.Open(ctx, state.Report, state.DatabaseDir)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := loader.Load(ctx, st, state.LedgerPath(), state.OutputDir)
	if err != nil {
		return err
	}
	state.Tables = res.Tables
	for _, t := range res.Tables {
		state.Rows += t.Rows
	}
	return nil
}

// Step 8 (optional): WorkbookStep exports the final tables as a spreadsheet.
type WorkbookStep struct{}

func (s *WorkbookStep) Stage() Stage { return Stage{Name: StageWorkbook, Progress: 95} }

func (s *WorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	path, err := ExportWorkbook(state.OutputDir, state.Report)
	if err != nil {
		return err
	}
	state.Artifacts = append(state.Artifacts, path)
	return nil
}

// StartHook is called before a step runs.
type StartHook func(ctx context.Context, stage Stage)

// DoneHook is called after a step returns, successfully or not.
type DoneHook func(ctx context.Context, stage Stage, elapsed time.Duration, rows int, err error)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []PipelineStep
	onStart StartHook
	onDone  DoneHook
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// OnStart registers a hook called before each step.
func (p *Pipeline) OnStart(fn StartHook) *Pipeline {
	p.onStart = fn
	return p
}

// OnDone registers a hook called after each step.
func (p *Pipeline) OnDone(fn DoneHook) *Pipeline {
	p.onDone = fn
	return p
}

// Stages lists the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Stage()
	}
	return out
}

// Execute runs all steps sequentially. The first failure stops the run and
// is returned as a *StageError naming the step.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for _, step := range p.steps {
		stage := step.Stage()
		sctx := logger.WithStage(ctx, stage.Name)
		log := logger.FromContext(sctx)

		if err := ctx.Err(); err != nil {
			return &StageError{Stage: stage.Name, Err: err}
		}
		if p.onStart != nil {
			p.onStart(sctx, stage)
		}

		state.Rows = 0
		start := time.Now()
		err := step.Execute(sctx, state)
		elapsed := time.Since(start)

		if p.onDone != nil {
			p.onDone(sctx, stage, elapsed, state.Rows, err)
		}
		if err != nil {
			log.Error().Err(err).Dur("elapsed", elapsed).Msg("Stage failed")
			return &StageError{Stage: stage.Name, Err: err}
		}
		log.Info().Int("rows", state.Rows).Dur("elapsed", elapsed).Msg("Stage completed")
	}
	return nil
}

// NewReportPipeline creates the standard pipeline from page files to store.
func NewReportPipeline(h *harvest.Harvester, storage gcsuploader.StorageService, open StoreOpener, workbook bool) *Pipeline {
	steps := []PipelineStep{
		&HarvestStep{Harvester: h, Storage: storage},
		&ParseStep{},
		&CleanStep{},
		&FinalizeStep{},
		&TransferStep{},
		&AmountStep{},
		&LoadStep{Open: open},
	}
	if workbook {
		steps = append(steps, &WorkbookStep{})
	}
	return NewPipeline(steps...)
}

// NewAnalysisPipeline creates the analyzer steps alone, for an existing ledger.
func NewAnalysisPipeline() *Pipeline {
	return NewPipeline(&TransferStep{}, &AmountStep{})
}
