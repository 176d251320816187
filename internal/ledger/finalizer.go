package ledger

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/logger"
)

var (
	transactionIDPattern   = regexp.MustCompile(`(?:\[交易单号：(\d+)\]|交易单号：(\d+))` + ws + `*`)
	transactionTypePattern = regexp.MustCompile(ws + `*微信(转账|红包)` + ws + `*$`)
	multiSpace             = regexp.MustCompile(ws + `{2,}`)
)

// Finalize extracts the transaction id and type from an entry, strips both
// from the detail and fills every blank field with the sentinel.
func Finalize(e Entry) Record {
	detail := e.Detail

	var id string
	if m := transactionIDPattern.FindStringSubmatch(detail); m != nil {
		id = m[1]
		if id == "" {
			id = m[2]
		}
	}
	var txType string
	if m := transactionTypePattern.FindStringSubmatch(detail); m != nil {
		txType = "微信" + m[1]
	}

	detail = transactionIDPattern.ReplaceAllLiteralString(detail, "")
	detail = transactionTypePattern.ReplaceAllLiteralString(detail, "")
	detail = strings.TrimSpace(multiSpace.ReplaceAllLiteralString(detail, " "))

	r := Record{Entry: e, TransactionID: id, TransactionType: txType}
	r.Detail = detail
	fillRecord(&r)
	return r
}

func fillRecord(r *Record) {
	for _, f := range []*string{
		&r.Timestamp,
		&r.Platform,
		&r.SelfName,
		&r.SelfID,
		&r.CounterpartName,
		&r.CounterpartID,
		&r.Detail,
		&r.TransactionID,
		&r.TransactionType,
	} {
		if strings.TrimSpace(*f) == "" {
			*f = artifact.Sentinel
		}
	}
}

// FinalizeAll finalizes every entry in order.
func FinalizeAll(ctx context.Context, entries []Entry) []Record {
	records := make([]Record, 0, len(entries))
	missingID, missingType := 0, 0
	for _, e := range entries {
		r := Finalize(e)
		if r.TransactionID == artifact.Sentinel {
			missingID++
		}
		if r.TransactionType == artifact.Sentinel {
			missingType++
		}
		records = append(records, r)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("records", len(records)).
		Int("missing_transaction_id", missingID).
		Int("missing_transaction_type", missingType).
		Msg("Ledger finalized")
	return records
}
