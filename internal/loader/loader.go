// Package loader moves a report's ledger and analysis artifacts into a store.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/logger"
	"github.com/dvloznov/wechat-ledger/internal/store"
)

// MasterTable is the table holding the final ledger.
const MasterTable = "流水总表"

// Result lists the tables written and their row counts.
type Result struct {
	Tables []TableResult
}

// TableResult is one loaded table.
type TableResult struct {
	Name   string
	Source string
	Rows   int
}

// Load writes the ledger at ledgerPath into the master table, then every CSV
// artifact in analysisDir into a table named after the file. The ledger file
// itself is skipped when it lives in analysisDir. Each table is replaced.
func Load(ctx context.Context, st store.Store, ledgerPath, analysisDir string) (*Result, error) {
	log := logger.FromContext(ctx)

	sources := []TableResult{{Name: MasterTable, Source: ledgerPath}}
	extra, err := analysisFiles(analysisDir, ledgerPath)
	if err != nil {
		return nil, err
	}
	sources = append(sources, extra...)

	res := &Result{}
	for _, src := range sources {
		t, err := artifact.ReadFile(src.Source)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		if err := st.ReplaceTable(ctx, src.Name, t); err != nil {
			return nil, fmt.Errorf("loader: table %s: %w", src.Name, err)
		}
		src.Rows = len(t.Rows)
		res.Tables = append(res.Tables, src)

		log.Info().
			Str("table", src.Name).
			Str("file", src.Source).
			Int("rows", src.Rows).
			Msg("Loaded table")
	}
	return res, nil
}

func analysisFiles(dir, ledgerPath string) ([]TableResult, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: read analysis dir: %w", err)
	}

	ledgerAbs, _ := filepath.Abs(ledgerPath)
	var out []TableResult
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if abs, _ := filepath.Abs(path); abs == ledgerAbs {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if stem == MasterTable {
			continue
		}
		out = append(out, TableResult{Name: stem, Source: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
