package analysis

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// Pair is a directed payer to payee relation.
type Pair struct {
	Payer string
	Payee string
}

// AggregateRow is the total exchanged over one pair.
type AggregateRow struct {
	Pair
	TotalAmount    float64
	Transactions   int
	RedPacketCount int
}

// Row returns the aggregate in artifact.AmountColumns order.
func (a AggregateRow) Row() []string {
	return artifact.FillBlank([]string{
		a.Payer,
		a.Payee,
		formatAmount(a.TotalAmount),
		strconv.Itoa(a.RedPacketCount),
	})
}

type totals struct {
	cents        int64
	transactions int
	redPackets   int
}

// AggregateSet accumulates per-pair totals. Amounts are kept in cents so
// that merging partial sets gives exactly the totals of the whole.
type AggregateSet struct {
	pairs map[Pair]*totals
}

// NewAggregateSet returns an empty set.
func NewAggregateSet() *AggregateSet {
	return &AggregateSet{pairs: make(map[Pair]*totals)}
}

// Add folds one ledger record into the set.
func (s *AggregateSet) Add(r ledger.Record) {
	payer, payee := Parties(r)
	t := s.get(Pair{Payer: payer, Payee: payee})
	t.cents += toCents(ExtractAmount(r.Detail))
	t.transactions++
	if IsRedPacket(r) {
		t.redPackets++
	}
}

// Merge adds every pair of other into s.
func (s *AggregateSet) Merge(other *AggregateSet) {
	for p, o := range other.pairs {
		t := s.get(p)
		t.cents += o.cents
		t.transactions += o.transactions
		t.redPackets += o.redPackets
	}
}

// Len returns the number of distinct pairs.
func (s *AggregateSet) Len() int { return len(s.pairs) }

// Rows returns one row per pair sorted by payer, then payee.
func (s *AggregateSet) Rows() []AggregateRow {
	rows := make([]AggregateRow, 0, len(s.pairs))
	for p, t := range s.pairs {
		rows = append(rows, AggregateRow{
			Pair:           p,
			TotalAmount:    float64(t.cents) / 100,
			Transactions:   t.transactions,
			RedPacketCount: t.redPackets,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Payer != rows[j].Payer {
			return rows[i].Payer < rows[j].Payer
		}
		return rows[i].Payee < rows[j].Payee
	})
	return rows
}

func (s *AggregateSet) get(p Pair) *totals {
	t, ok := s.pairs[p]
	if !ok {
		t = &totals{}
		s.pairs[p] = t
	}
	return t
}

// Aggregate groups records by pair.
func Aggregate(records []ledger.Record) *AggregateSet {
	s := NewAggregateSet()
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// AmountTable builds the per-pair totals artifact.
func AmountTable(ctx context.Context, records []ledger.Record) *artifact.Table {
	t := artifact.NewTable(artifact.AmountColumns)
	for _, row := range Aggregate(records).Rows() {
		t.Rows = append(t.Rows, row.Row())
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(t.Rows)).Msg("Built amount table")
	return t
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
