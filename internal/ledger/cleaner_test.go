package ledger

import (
	"context"
	"reflect"
	"testing"
)

func TestCleanDetail(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   string
	}{
		{
			name:   "leading id and timestamp marks missing payer",
			detail: "（wxid_a） 2024-01-01 10:00:00 向 李四 转账 ￥1.00元",
			want:   "<微信名为空> 向 李四 转账 ￥1.00元",
		},
		{
			name:   "embedded id and timestamp removed",
			detail: "张三（wxid_a） 2024-01-01 10:00:00 向 李四 转账 ￥1.00元",
			want:   "张三 向 李四 转账 ￥1.00元",
		},
		{
			name:   "missing payee",
			detail: "张三 向  转账 ￥1.00元",
			want:   "张三 向<微信名为空>转账 ￥1.00元",
		},
		{
			name:   "full width and repeated whitespace collapse",
			detail: "  张三　　向\t李四   转账 ",
			want:   "张三 向 李四 转账",
		},
		{
			name:   "plain text untouched",
			detail: "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元 [交易单号：123] 微信转账",
			want:   "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元 [交易单号：123] 微信转账",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDetail(tt.detail); got != tt.want {
				t.Errorf("CleanDetail(%q) = %q, want %q", tt.detail, got, tt.want)
			}
		})
	}
}

func TestClean_DropsForwardedAndDuplicates(t *testing.T) {
	entries := []Entry{
		{SourceFile: "page1.html", Detail: "张三（a） 2024-01-01 10:00:00 向 李四 转账 ￥1元"},
		{SourceFile: "page1.html", Detail: "张三 向 李四 转账 ￥1元"},
		{SourceFile: "page2.html", Detail: "张三 向 李四 转账 ￥1元"},
		{SourceFile: "page1.html", Detail: "来自 王五 的转账 ￥9元"},
		{SourceFile: "page1.html", Detail: "张三 向 李四 转账 ￥2元"},
	}

	got := Clean(context.Background(), entries)
	want := []Entry{
		{SourceFile: "page1.html", Detail: "张三 向 李四 转账 ￥1元"},
		{SourceFile: "page2.html", Detail: "张三 向 李四 转账 ￥1元"},
		{SourceFile: "page1.html", Detail: "张三 向 李四 转账 ￥2元"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() = %+v, want %+v", got, want)
	}
}

func TestClean_Idempotent(t *testing.T) {
	entries := []Entry{
		{SourceFile: "p1", Detail: "（a）（b） 2024-01-01 10:00:00 2024-01-02 10:00:00 向 转账"},
		{SourceFile: "p1", Detail: "（a） 2024-01-01 10:00:00 向 转账"},
		{SourceFile: "p1", Detail: "张三　向 李四 转账"},
		{SourceFile: "p1", Detail: "张三 向 李四 转账"},
		{SourceFile: "p2", Detail: "王五（c） 2024-01-01 10:00:00 向 赵六 转账"},
	}

	once := Clean(context.Background(), entries)
	twice := Clean(context.Background(), once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second Clean changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}
