// Package ledger turns harvested chat-log segments into the canonical
// transaction ledger: header parsing and body splitting, detail cleaning and
// deduplication, and final field extraction.
package ledger

import (
	"github.com/dvloznov/wechat-ledger/internal/artifact"
)

// RawSegment is one heading match harvested from a page file.
type RawSegment struct {
	SourceFile string
	Header     string
	Body       string
}

// HeaderInfo identifies both sides of a conversation log.
type HeaderInfo struct {
	Platform        string
	SelfName        string
	SelfID          string
	CounterpartName string
	CounterpartID   string
}

// Entry is a single timestamped transaction split out of a segment body.
// SourceFile is carried in memory for deduplication and is not part of the
// stage artifacts.
type Entry struct {
	SourceFile string
	Timestamp  string
	HeaderInfo
	Detail string
}

// Record is a finalized ledger row. No field of a Record is empty.
type Record struct {
	Entry
	TransactionID   string
	TransactionType string
}

// Transaction types recognised in the detail text.
const (
	TypeTransfer  = "微信转账"
	TypeRedPacket = "微信红包"
)

// Row returns the entry in artifact.EntryColumns order.
func (e Entry) Row() []string {
	return []string{
		e.Timestamp,
		e.Platform,
		e.SelfName,
		e.SelfID,
		e.CounterpartName,
		e.CounterpartID,
		e.Detail,
	}
}

// Row returns the record in artifact.LedgerColumns order.
func (r Record) Row() []string {
	return append(r.Entry.Row(), r.TransactionID, r.TransactionType)
}

// EntriesTable renders entries as a stage artifact.
func EntriesTable(entries []Entry) *artifact.Table {
	t := artifact.NewTable(artifact.EntryColumns)
	for _, e := range entries {
		t.Rows = append(t.Rows, e.Row())
	}
	return t
}

// LedgerTable renders records as the final ledger artifact.
func LedgerTable(records []Record) *artifact.Table {
	t := artifact.NewTable(artifact.LedgerColumns)
	for _, r := range records {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// SegmentsTable renders harvested segments as the first stage artifact.
func SegmentsTable(segments []RawSegment) *artifact.Table {
	t := artifact.NewTable(artifact.HarvestColumns)
	for _, s := range segments {
		t.Rows = append(t.Rows, []string{s.SourceFile, s.Header, s.Body})
	}
	return t
}

// RecordsFromTable reads ledger records back from a ledger artifact.
func RecordsFromTable(t *artifact.Table) ([]Record, error) {
	if err := t.Require(artifact.LedgerColumns...); err != nil {
		return nil, err
	}
	idx := make([]int, len(artifact.LedgerColumns))
	for i, c := range artifact.LedgerColumns {
		idx[i] = t.Index(c)
	}

	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		cell := func(i int) string { return row[idx[i]] }
		records = append(records, Record{
			Entry: Entry{
				Timestamp: cell(0),
				HeaderInfo: HeaderInfo{
					Platform:        cell(1),
					SelfName:        cell(2),
					SelfID:          cell(3),
					CounterpartName: cell(4),
					CounterpartID:   cell(5),
				},
				Detail: cell(6),
			},
			TransactionID:   cell(7),
			TransactionType: cell(8),
		})
	}
	return records, nil
}
