// Package analysis derives the per-transfer and per-pair aggregate tables
// from the finalized ledger.
package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
)

const ws = `[\s\x{00a0}\x{3000}]`

var (
	payerPattern  = regexp.MustCompile(`^(.*?)` + ws + `+向`)
	payeePattern  = regexp.MustCompile(`向` + ws + `*([^转发送红包]+?)(?:转账|发送|$)`)
	amountPattern = regexp.MustCompile(`￥([\d,]+\.?\d*)`)
)

// IsRedPacket reports whether the record's transaction type is a red packet.
func IsRedPacket(r ledger.Record) bool {
	return strings.Contains(r.TransactionType, ledger.TypeRedPacket)
}

// Parties returns the payer and payee of a record. Red packets name no payer
// in their text, so the counterpart is the payer and the examined account
// the payee. Otherwise both are read from the "A 向 B 转账" shape of the
// detail. Anything missing is the sentinel.
func Parties(r ledger.Record) (payer, payee string) {
	if IsRedPacket(r) {
		return orSentinel(r.CounterpartName), orSentinel(r.SelfName)
	}
	if m := payerPattern.FindStringSubmatch(r.Detail); m != nil {
		payer = m[1]
	}
	if m := payeePattern.FindStringSubmatch(r.Detail); m != nil {
		payee = m[1]
	}
	return orSentinel(payer), orSentinel(payee)
}

// ExtractAmount returns the first ￥-prefixed number in detail, or 0 when
// there is none. Grouping commas are ignored.
func ExtractAmount(detail string) float64 {
	v, _ := findAmount(detail)
	return v
}

func findAmount(detail string) (float64, bool) {
	m := amountPattern.FindStringSubmatch(strings.ReplaceAll(detail, "，", ""))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func orSentinel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return artifact.Sentinel
	}
	return s
}
