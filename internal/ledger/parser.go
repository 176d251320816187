package ledger

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// LogMarker is the heading text that identifies a transaction log.
const LogMarker = "流水记录"

var (
	// prefix / platform / self name (self id) / 流水记录 / counterpart [(dup index)]
	headerPattern = regexp.MustCompile(
		`^(.+?)/(微信(?:\(分身版\))?)/(.+?)\((.+?)\)/` + LogMarker + `/(.+?)(?:\((\d+)\))?$`)

	counterpartPattern = regexp.MustCompile(`^(.+?)（(.+?)）`)

	// A body is cut right after each transfer or red-packet marker that is
	// followed by whitespace.
	boundaryPattern = regexp.MustCompile(`(微信转账|微信红包)[\s\x{00a0}\x{3000}]+`)

	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
)

// ParseHeader extracts identity fields from a segment heading. ok is false
// when the heading does not have the expected shape.
func ParseHeader(header string) (info HeaderInfo, ok bool) {
	m := headerPattern.FindStringSubmatch(header)
	if m == nil {
		return HeaderInfo{}, false
	}
	name, id := parseCounterpart(strings.TrimSpace(m[5]))
	return HeaderInfo{
		Platform:        m[2],
		SelfName:        strings.TrimSpace(m[3]),
		SelfID:          strings.TrimSpace(m[4]),
		CounterpartName: name,
		CounterpartID:   id,
	}, true
}

// parseCounterpart splits "name（id）". Without both full-width parentheses
// the whole segment is an id-less name.
func parseCounterpart(part string) (name, id string) {
	if !strings.Contains(part, "（") || !strings.Contains(part, "）") {
		return strings.TrimSpace(part), ""
	}
	if m := counterpartPattern.FindStringSubmatch(part); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	fields := strings.FieldsFunc(part, func(r rune) bool { return r == '（' || r == '）' })
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return strings.TrimSpace(fields[0]), ""
	default:
		return strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
	}
}

// SplitBody cuts a segment body into transaction fragments. The marker stays
// with the fragment it ends; the whitespace after it is dropped.
func SplitBody(body string) []string {
	var parts []string
	start := 0
	for _, loc := range boundaryPattern.FindAllStringSubmatchIndex(body, -1) {
		parts = append(parts, body[start:loc[3]])
		start = loc[1]
	}
	parts = append(parts, body[start:])

	fragments := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fragments = append(fragments, p)
		}
	}
	return fragments
}

// Timestamp returns the first YYYY-MM-DD HH:MM:SS timestamp in s.
func Timestamp(s string) (string, bool) {
	ts := timestampPattern.FindString(s)
	return ts, ts != ""
}

// ParseSegments turns harvested segments into transaction entries. Segments
// with an unrecognised header and fragments without a timestamp are dropped.
func ParseSegments(ctx context.Context, segments []RawSegment) []Entry {
	log := logger.FromContext(ctx)

	var entries []Entry
	skippedHeaders, skippedFragments := 0, 0
	for _, seg := range segments {
		info, ok := ParseHeader(seg.Header)
		if !ok {
			skippedHeaders++
			log.Debug().Str("file", seg.SourceFile).Str("header", seg.Header).Msg("Header did not match, segment dropped")
			continue
		}
		for _, frag := range SplitBody(seg.Body) {
			ts, ok := Timestamp(frag)
			if !ok {
				skippedFragments++
				continue
			}
			entries = append(entries, Entry{
				SourceFile: seg.SourceFile,
				Timestamp:  ts,
				HeaderInfo: info,
				Detail:     frag,
			})
		}
	}

	log.Info().
		Int("segments", len(segments)).
		Int("entries", len(entries)).
		Int("skipped_headers", skippedHeaders).
		Int("skipped_fragments", skippedFragments).
		Msg("Segments parsed")
	return entries
}
