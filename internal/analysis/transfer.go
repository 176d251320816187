package analysis

import (
	"context"
	"strconv"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// TransferRow is one ledger record seen as a single transfer.
type TransferRow struct {
	Timestamp string
	Payer     string
	Payee     string
	Amount    string
}

// Row returns the transfer in artifact.TransferColumns order.
func (t TransferRow) Row() []string {
	return artifact.FillBlank([]string{t.Timestamp, t.Payer, t.Payee, t.Amount})
}

// Transfer derives one transfer row from a record. A red packet without an
// amount in its text is rendered as the red-packet type instead of 0.00.
func Transfer(r ledger.Record) TransferRow {
	payer, payee := Parties(r)

	amount, ok := findAmount(r.Detail)
	cell := formatAmount(amount)
	if !ok && IsRedPacket(r) {
		cell = ledger.TypeRedPacket
	}

	return TransferRow{
		Timestamp: orSentinel(r.Timestamp),
		Payer:     payer,
		Payee:     payee,
		Amount:    cell,
	}
}

// TransferTable builds the per-transfer analysis artifact.
func TransferTable(ctx context.Context, records []ledger.Record) *artifact.Table {
	t := artifact.NewTable(artifact.TransferColumns)
	for _, r := range records {
		t.Rows = append(t.Rows, Transfer(r).Row())
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(t.Rows)).Msg("Built transfer table")
	return t
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
