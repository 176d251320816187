package ledger

import (
	"context"
	"reflect"
	"regexp"
	"testing"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   HeaderInfo
		ok     bool
	}{
		{
			name:   "counterpart with id",
			header: "x/微信/张三(wx001)/流水记录/李四（wx002）",
			want:   HeaderInfo{Platform: "微信", SelfName: "张三", SelfID: "wx001", CounterpartName: "李四", CounterpartID: "wx002"},
			ok:     true,
		},
		{
			name:   "clone app platform and duplicate index",
			header: "报告/聊天/微信(分身版)/王五(wxid_abc)/流水记录/赵六（wxid_def）(3)",
			want:   HeaderInfo{Platform: "微信(分身版)", SelfName: "王五", SelfID: "wxid_abc", CounterpartName: "赵六", CounterpartID: "wxid_def"},
			ok:     true,
		},
		{
			name:   "counterpart without id",
			header: "x/微信/张三(wx001)/流水记录/文件传输助手",
			want:   HeaderInfo{Platform: "微信", SelfName: "张三", SelfID: "wx001", CounterpartName: "文件传输助手"},
			ok:     true,
		},
		{
			name:   "only opening parenthesis",
			header: "x/微信/张三(wx001)/流水记录/李四（wx002",
			want:   HeaderInfo{Platform: "微信", SelfName: "张三", SelfID: "wx001", CounterpartName: "李四（wx002"},
			ok:     true,
		},
		{
			name:   "missing marker",
			header: "x/微信/张三(wx001)/聊天记录/李四（wx002）",
			ok:     false,
		},
		{
			name:   "other platform",
			header: "x/QQ/张三(10001)/流水记录/李四",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseHeader(tt.header)
			if ok != tt.ok {
				t.Fatalf("ParseHeader(%q) ok = %v, want %v", tt.header, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseHeader(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

func TestSplitBody(t *testing.T) {
	body := "2024-01-01 10:00:00 张三 向 李四 转账 ￥1.00元 微信转账 " +
		"2024-01-02 11:00:00 李四 发出红包 微信红包　" +
		"没有时间的片段 微信转账  " +
		"2024-01-03 12:00:00 尾部 微信转账"

	want := []string{
		"2024-01-01 10:00:00 张三 向 李四 转账 ￥1.00元 微信转账",
		"2024-01-02 11:00:00 李四 发出红包 微信红包",
		"没有时间的片段 微信转账",
		"2024-01-03 12:00:00 尾部 微信转账",
	}
	if got := SplitBody(body); !reflect.DeepEqual(got, want) {
		t.Errorf("SplitBody() = %q, want %q", got, want)
	}
}

func TestSplitBody_MarkerWithoutWhitespaceDoesNotSplit(t *testing.T) {
	got := SplitBody("2024-01-01 10:00:00 微信转账微信红包")
	if len(got) != 1 {
		t.Fatalf("SplitBody() returned %d fragments, want 1: %q", len(got), got)
	}
}

func TestParseSegments_DropsFragmentsWithoutTimestamp(t *testing.T) {
	segments := []RawSegment{{
		SourceFile: "page1.html",
		Header:     "x/微信/张三(wx001)/流水记录/李四（wx002）",
		Body:       "无时间 微信转账 2024-01-01 10:00:00 张三 向 李四 转账 ￥5.00元 微信转账",
	}}

	entries := ParseSegments(context.Background(), segments)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Timestamp != "2024-01-01 10:00:00" || e.SourceFile != "page1.html" || e.CounterpartID != "wx002" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestParseSegments_BadHeaderYieldsNothing(t *testing.T) {
	segments := []RawSegment{{
		SourceFile: "page1.html",
		Header:     "完全不匹配的标题 流水记录",
		Body:       "2024-01-01 10:00:00 张三 向 李四 转账 ￥5.00元 微信转账",
	}}
	if entries := ParseSegments(context.Background(), segments); len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestParseSegments_TimestampShape(t *testing.T) {
	shape := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	segments := []RawSegment{{
		Header: "x/微信/张三(wx001)/流水记录/李四（wx002）",
		Body: "（wx001） 2023-12-31 23:59:59 向 转账 ￥1元 微信转账 " +
			"李四（wx002） 2024-02-29 08:00:01 向 张三 转账 ￥2元 微信红包 " +
			"日期 2024-1-1 10:00 不完整 微信转账",
	}}
	entries := ParseSegments(context.Background(), segments)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if !shape.MatchString(e.Timestamp) {
			t.Errorf("timestamp %q does not have the expected shape", e.Timestamp)
		}
	}
}
