// Package store writes report tables into a relational backend. Every
// backend is scoped to one report and replaces a table wholesale on load.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/config"
)

// Store is a report-scoped table sink.
type Store interface {
	// ReplaceTable drops the named table if present and recreates it with
	// the contents of t, atomically where the backend allows it.
	ReplaceTable(ctx context.Context, name string, t *artifact.Table) error
	// RowCount returns the number of rows currently in the named table.
	RowCount(ctx context.Context, name string) (int64, error)
	Close() error
}

// ColumnType is the storage type inferred for a column.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
)

// Column is a named, typed column of a table schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema infers one type per column: INTEGER when every cell is an integer,
// REAL when every cell is a number, TEXT otherwise. Columns without rows are
// TEXT.
func Schema(t *artifact.Table) []Column {
	cols := make([]Column, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = Column{Name: name, Type: inferType(t.Rows, i)}
	}
	return cols
}

var (
	integerPattern = regexp.MustCompile(`^[-+]?(0|[1-9]\d*)$`)
	realPattern    = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?$`)
)

func inferType(rows [][]string, col int) ColumnType {
	if len(rows) == 0 {
		return TypeText
	}
	typ := TypeInteger
	for _, row := range rows {
		switch cellType(strings.TrimSpace(row[col])) {
		case TypeText:
			return TypeText
		case TypeReal:
			typ = TypeReal
		}
	}
	return typ
}

// cellType classifies one cell. Digit strings with leading zeros or beyond
// int64 range are identifiers rather than numbers and stay TEXT.
func cellType(cell string) ColumnType {
	if integerPattern.MatchString(cell) {
		if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return TypeInteger
		}
		return TypeText
	}
	if realPattern.MatchString(cell) && strings.ContainsAny(cell, ".eE") {
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return TypeReal
		}
	}
	return TypeText
}

// Values converts a row to driver values following the schema.
func Values(row []string, cols []Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		cell := strings.TrimSpace(row[i])
		switch c.Type {
		case TypeInteger:
			v, _ := strconv.ParseInt(cell, 10, 64)
			out[i] = v
		case TypeReal:
			v, _ := strconv.ParseFloat(cell, 64)
			out[i] = v
		default:
			out[i] = row[i]
		}
	}
	return out
}

// Open returns the configured backend for a report. databaseDir is the
// report's own database directory and is only used by the SQLite backend.
func Open(ctx context.Context, cfg config.StoreConfig, databaseDir, report string) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return NewSQLite(filepath.Join(databaseDir, report+".db"))
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.PostgresDSN, report)
	case config.BackendBigQuery:
		return NewBigQuery(ctx, cfg.BigQueryProj, DatasetName(cfg.DatasetPrefix, report))
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
