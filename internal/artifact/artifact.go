// Package artifact reads and writes the tabular files handed between pipeline
// stages. Every file is CSV encoded as UTF-8 with a byte order mark and starts
// with a header row naming the columns.
package artifact

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Sentinel is written in place of every missing value in final outputs.
const Sentinel = "<空缺>"

// Column sets of each stage artifact, in file order.
var (
	HarvestColumns  = []string{"来源文件", "标题", "原始内容"}
	EntryColumns    = []string{"时间", "平台", "检材微信名", "微信号", "对方微信名", "对方微信号", "交易明细"}
	LedgerColumns   = append(append([]string{}, EntryColumns...), "交易单号", "交易方式")
	TransferColumns = []string{"时间", "转账方", "收款方", "金额"}
	AmountColumns   = []string{"转账方", "收款方", "总金额", "微信红包个数"}
)

// Table is an in-memory artifact: an ordered column list plus rows of cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with a copy of the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds one row. The row must have exactly one cell per column.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("artifact: row has %d cells, want %d", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Require checks that every named column is present.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if t.Index(c) < 0 {
			return fmt.Errorf("artifact: missing column %q", c)
		}
	}
	return nil
}

// Write encodes the table to w as BOM-prefixed UTF-8 CSV.
func Write(w io.Writer, t *Table) error {
	enc := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(enc)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("artifact: writing header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("artifact: writing rows: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the table to path, creating parent directories. The file
// is written to a temporary name first and renamed into place, so a failed
// run never leaves a truncated artifact behind.
func WriteFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", tmp, err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, t); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("artifact: flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifact: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Read decodes a CSV artifact. A leading byte order mark is optional. Short
// rows are padded with empty cells and long rows are truncated to the header.
func Read(r io.Reader) (*Table, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("artifact: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := NewTable(header)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("artifact: reading row %d: %w", len(t.Rows)+1, err)
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile reads the artifact stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// FillBlank replaces every empty or whitespace-only cell with Sentinel.
func FillBlank(row []string) []string {
	for i, cell := range row {
		if strings.TrimSpace(cell) == "" {
			row[i] = Sentinel
		}
	}
	return row
}
