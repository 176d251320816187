package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(header, body string) string {
	return "<html><body><h2>" + header + "</h2><div>" + body + "</div></body></html>"
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestParse(t *testing.T) {
	doc := `<html><body>
<h1>导出报告</h1>
<div>ignored</div>
<h2>  案件/微信/张三(wx001)
   /流水记录/李四（wx002） </h2>
<div>
  <p>2024-01-01 10:00:00 张三 向 李四 转账</p>
  <p> </p>
  <span>￥100.00元 微信转账</span>
</div>
<h3>案件/微信/张三(wx001)/流水记录/王五</h3>
</body></html>`

	segs, err := Parse(strings.NewReader(doc), "page1.html")
	require.NoError(t, err)
	require.Len(t, segs, 1, "heading without a following div yields nothing")

	assert.Equal(t, "page1.html", segs[0].SourceFile)
	assert.Equal(t, "案件/微信/张三(wx001) /流水记录/李四（wx002）", segs[0].Header)
	assert.Equal(t, "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元 微信转账", segs[0].Body)
}

func TestPages_OrderAndFilter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page10.html": "",
		"page2.htm":   "",
		"page1.html":  "",
		"notes.txt":   "",
		"pageX.html":  "",
	})

	pages, err := Pages(dir)
	require.NoError(t, err)

	var got []int
	for _, p := range pages {
		got = append(got, p.Index)
	}
	assert.Equal(t, []int{1, 2, 10}, got)
}

func TestPages_Errors(t *testing.T) {
	_, err := Pages(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = Pages(writeFiles(t, map[string]string{"readme.md": "x"}))
	assert.True(t, errors.Is(err, ErrNoPages))
}

func TestRun_OrderedByPageIndex(t *testing.T) {
	files := map[string]string{}
	for _, n := range []string{"1", "2", "3", "11", "20"} {
		files["page"+n+".html"] = page("x/微信/张三(wx001)/流水记录/李四", "p"+n)
	}
	// page1 is by far the slowest to parse, so with several workers it
	// finishes after the later pages.
	files["page1.html"] = "<html><body>" + strings.Repeat("<p>filler</p>", 50000) +
		"<h2>x/微信/张三(wx001)/流水记录/李四</h2><div>p1</div></body></html>"
	dir := writeFiles(t, files)

	for _, workers := range []int{1, 4} {
		segs, err := New(workers).Run(context.Background(), dir)
		require.NoError(t, err)

		var bodies []string
		for _, s := range segs {
			bodies = append(bodies, s.Body)
		}
		assert.Equal(t, []string{"p1", "p2", "p3", "p11", "p20"}, bodies, "workers=%d", workers)
	}
}

func TestRun_SkipsDirectoriesNamedLikePages(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page1.html": page("x/微信/张三(wx001)/流水记录/李四", "body"),
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "page2.html"), 0o755))

	segs, err := New(2).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestRun_SkipsUnreadableFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page1.html": page("x/微信/张三(wx001)/流水记录/李四", "body"),
	})
	if err := os.Symlink(filepath.Join(dir, "missing.html"), filepath.Join(dir, "page2.html")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	segs, err := New(2).Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "page1.html", segs[0].SourceFile)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page1.html": page("x/微信/张三(wx001)/流水记录/李四", "body"),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(1).Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_DefaultWorkers(t *testing.T) {
	assert.Positive(t, New(0).Workers)
}
