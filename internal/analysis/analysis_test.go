package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
	"github.com/dvloznov/wechat-ledger/internal/ledger"
)

func record(self, counterpart, detail, txType string) ledger.Record {
	return ledger.Record{
		Entry: ledger.Entry{
			Timestamp:  "2024-01-01 10:00:00",
			HeaderInfo: ledger.HeaderInfo{Platform: "微信", SelfName: self, CounterpartName: counterpart},
			Detail:     detail,
		},
		TransactionID:   artifact.Sentinel,
		TransactionType: txType,
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		detail string
		want   float64
	}{
		{"张三 向 李四 转账 ￥1,234.50元 备注", 1234.50},
		{"no amount here", 0},
		{"￥100.00元 然后 ￥5元", 100},
		{"￥1，000元", 1000},
		{"￥8", 8},
		{"￥,", 0},
		{"$100", 0},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractAmount(tt.detail), 1e-9)
		})
	}
}

func TestParties(t *testing.T) {
	tests := []struct {
		name      string
		rec       ledger.Record
		wantPayer string
		wantPayee string
	}{
		{
			name:      "transfer text",
			rec:       record("张三", "李四", "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元", ledger.TypeTransfer),
			wantPayer: "2024-01-01 10:00:00 张三",
			wantPayee: "李四",
		},
		{
			name:      "payee before send",
			rec:       record("张三", "李四", "王五 向 赵六发送 ￥2元", ledger.TypeTransfer),
			wantPayer: "王五",
			wantPayee: "赵六",
		},
		{
			name:      "red packet reverses roles regardless of text",
			rec:       record("B", "A", "B 向 C 转账 ￥1元", ledger.TypeRedPacket),
			wantPayer: "A",
			wantPayee: "B",
		},
		{
			name:      "no direction",
			rec:       record("张三", "李四", "收到 ￥3元", artifact.Sentinel),
			wantPayer: artifact.Sentinel,
			wantPayee: artifact.Sentinel,
		},
		{
			name:      "red packet with blank names",
			rec:       record(" ", "", "￥1元", ledger.TypeRedPacket),
			wantPayer: artifact.Sentinel,
			wantPayee: artifact.Sentinel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payer, payee := Parties(tt.rec)
			assert.Equal(t, tt.wantPayer, payer)
			assert.Equal(t, tt.wantPayee, payee)
		})
	}
}

func TestTransfer(t *testing.T) {
	got := Transfer(record("B", "A", "A 发出红包", ledger.TypeRedPacket))
	assert.Equal(t, TransferRow{Timestamp: "2024-01-01 10:00:00", Payer: "A", Payee: "B", Amount: "微信红包"}, got)

	got = Transfer(record("B", "A", "A 发出红包 ￥8.8元", ledger.TypeRedPacket))
	assert.Equal(t, "8.80", got.Amount)

	got = Transfer(record("张三", "李四", "张三 向 李四 转账", ledger.TypeTransfer))
	assert.Equal(t, "0.00", got.Amount)
	assert.Equal(t, "张三", got.Payer)
	assert.Equal(t, "李四", got.Payee)
}

func TestTransferTable_NoEmptyCells(t *testing.T) {
	recs := []ledger.Record{
		record("张三", "李四", "张三 向 李四 转账 ￥1元", ledger.TypeTransfer),
		record("", "", "", ""),
	}
	tbl := TransferTable(context.Background(), recs)
	assert.Equal(t, artifact.TransferColumns, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	for _, row := range tbl.Rows {
		for _, cell := range row {
			assert.NotEmpty(t, cell)
		}
	}
}

func TestAmountTable(t *testing.T) {
	recs := []ledger.Record{
		record("张三", "李四", "张三 向 李四 转账 ￥100.00元", ledger.TypeTransfer),
		record("张三", "李四", "张三 向 李四 转账 ￥1,000.50元", ledger.TypeTransfer),
		record("张三", "李四", "李四 发出红包 ￥8.88元", ledger.TypeRedPacket),
		record("张三", "李四", "李四 发出红包", ledger.TypeRedPacket),
	}

	tbl := AmountTable(context.Background(), recs)
	assert.Equal(t, artifact.AmountColumns, tbl.Columns)
	assert.Equal(t, [][]string{
		{"张三", "李四", "1100.50", "0"},
		{"李四", "张三", "8.88", "2"},
	}, tbl.Rows)
}

func TestAggregateSet_MergeMatchesWhole(t *testing.T) {
	recs := []ledger.Record{
		record("张三", "李四", "张三 向 李四 转账 ￥0.10元", ledger.TypeTransfer),
		record("张三", "李四", "张三 向 李四 转账 ￥0.20元", ledger.TypeTransfer),
		record("张三", "李四", "李四 发出红包 ￥0.30元", ledger.TypeRedPacket),
		record("张三", "王五", "张三 向 王五 转账 ￥1,234.56元", ledger.TypeTransfer),
		record("张三", "王五", "王五 发出红包", ledger.TypeRedPacket),
		record("张三", "李四", "张三 向 李四 转账 ￥99.99元", ledger.TypeTransfer),
	}
	whole := Aggregate(recs).Rows()

	for split := 0; split <= len(recs); split++ {
		left := Aggregate(recs[:split])
		left.Merge(Aggregate(recs[split:]))
		assert.Equal(t, whole, left.Rows(), "split at %d", split)
	}

	// Interleaved partition.
	var even, odd []ledger.Record
	for i, r := range recs {
		if i%2 == 0 {
			even = append(even, r)
		} else {
			odd = append(odd, r)
		}
	}
	merged := Aggregate(odd)
	merged.Merge(Aggregate(even))
	assert.Equal(t, whole, merged.Rows())
	assert.Equal(t, 4, merged.Len())
}
