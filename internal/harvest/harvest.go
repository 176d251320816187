// Package harvest extracts raw transaction-log segments from exported HTML
// page files.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/wechat-ledger/internal/ledger"
	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// ErrNoPages is returned when the input directory holds no page files.
var ErrNoPages = errors.New("harvest: no page files found")

var pageNamePattern = regexp.MustCompile(`^page(\d+)\.html?$`)

// Page is a discovered page file and its numeric index.
type Page struct {
	Index int
	Path  string
}

// Harvester reads page files on a bounded worker pool.
type Harvester struct {
	Workers int
}

// New returns a Harvester. workers <= 0 means one worker per CPU.
func New(workers int) *Harvester {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Harvester{Workers: workers}
}

// Pages lists the page files of dir ordered by page index. Other files are ignored.
func Pages(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("harvest: read input dir: %w", err)
	}

	var pages []Page
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pageNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, Page{Index: n, Path: filepath.Join(dir, e.Name())})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPages, dir)
	}

	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

// Run harvests every page file in dir. Results are ordered by page index
// regardless of which worker finishes first. Unreadable files are skipped.
func (h *Harvester) Run(ctx context.Context, dir string) ([]ledger.RawSegment, error) {
	log := logger.FromContext(ctx)

	pages, err := Pages(dir)
	if err != nil {
		return nil, err
	}

	results := make([][]ledger.RawSegment, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.Workers)

	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			segs, err := ParseFile(p.Path)
			if err != nil {
				log.Warn().Err(err).Str("file", p.Path).Msg("Skipping unreadable page file")
				return nil
			}
			results[i] = segs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}

	var segments []ledger.RawSegment
	for _, r := range results {
		segments = append(segments, r...)
	}

	log.Info().
		Int("files", len(pages)).
		Int("rows", len(segments)).
		Msg("Harvested page files")
	return segments, nil
}

// ParseFile harvests one page file.
func ParseFile(path string) ([]ledger.RawSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	segs, err := Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segs, nil
}

// Parse extracts one segment per heading whose text contains the log marker.
// The body is the text of the first div that follows the heading in document
// order; a heading without one yields nothing.
func Parse(r io.Reader, source string) ([]ledger.RawSegment, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	elems := elements(doc)
	var segs []ledger.RawSegment
	for i, n := range elems {
		if !isHeading(n) {
			continue
		}
		header := strings.Join(strings.Fields(text(n, "")), " ")
		if !strings.Contains(header, ledger.LogMarker) {
			continue
		}
		div := nextDiv(elems[i+1:])
		if div == nil {
			continue
		}
		segs = append(segs, ledger.RawSegment{
			SourceFile: source,
			Header:     header,
			Body:       text(div, " "),
		})
	}
	return segs, nil
}

// elements returns every element node of the tree in document order.
func elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func nextDiv(elems []*html.Node) *html.Node {
	for _, n := range elems {
		if n.DataAtom == atom.Div {
			return n
		}
	}
	return nil
}

// text trims every text node under n, drops the empty ones and joins the
// rest with sep.
func text(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}
