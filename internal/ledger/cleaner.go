package ledger

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// EmptyName marks a payer or payee whose display name is missing.
const EmptyName = "<微信名为空>"

// ForwardedMarker flags quoted or forwarded transfers that duplicate an
// originating entry elsewhere.
const ForwardedMarker = "来自"

const ws = `[\s\x{00a0}\x{3000}]`

var (
	leadingIDStamp  = regexp.MustCompile(`^（[^）]+）` + ws + `*\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}` + ws + `*`)
	embeddedIDStamp = regexp.MustCompile(`（[^）]+）` + ws + `*\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	blankPayee      = regexp.MustCompile(`向` + ws + `+转账`)
	whitespaceRun   = regexp.MustCompile(ws + `+`)
)

// CleanDetail rewrites a transaction detail in four fixed steps:
//  1. a leading "（id） timestamp" becomes the empty-name placeholder
//  2. any other "（id） timestamp" is removed
//  3. "向 转账" gets the empty-name placeholder as payee
//  4. whitespace runs collapse to one space and the result is trimmed
//
// A removal can expose a new leading "（id） timestamp", so the steps repeat
// until the text is stable.
func CleanDetail(detail string) string {
	s := detail
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanPass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

const maxCleanPasses = 8

func cleanPass(s string) string {
	s = leadingIDStamp.ReplaceAllLiteralString(s, EmptyName+" ")
	s = embeddedIDStamp.ReplaceAllLiteralString(s, "")
	s = blankPayee.ReplaceAllLiteralString(s, "向"+EmptyName+"转账")
	s = whitespaceRun.ReplaceAllLiteralString(s, " ")
	return strings.TrimSpace(s)
}

type dedupKey struct {
	sourceFile string
	detail     string
}

// Clean rewrites every entry's detail, drops forwarded references and removes
// duplicates keyed on (source file, cleaned detail). The first occurrence
// wins and input order is kept. Clean(Clean(x)) == Clean(x).
func Clean(ctx context.Context, entries []Entry) []Entry {
	log := logger.FromContext(ctx)

	seen := make(map[dedupKey]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	forwarded, duplicates := 0, 0
	for _, e := range entries {
		e.Detail = CleanDetail(e.Detail)
		if strings.Contains(e.Detail, ForwardedMarker) {
			forwarded++
			continue
		}
		key := dedupKey{sourceFile: e.SourceFile, detail: e.Detail}
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	log.Info().
		Int("entries_in", len(entries)).
		Int("entries_out", len(out)).
		Int("forwarded", forwarded).
		Int("duplicates", duplicates).
		Msg("Entries cleaned")
	return out
}
