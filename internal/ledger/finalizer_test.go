package ledger

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name       string
		detail     string
		wantDetail string
		wantID     string
		wantType   string
	}{
		{
			name:       "bracketed id and transfer type",
			detail:     "张三 向 李四 转账 ￥100.00元 [交易单号：123] 微信转账",
			wantDetail: "张三 向 李四 转账 ￥100.00元",
			wantID:     "123",
			wantType:   "微信转账",
		},
		{
			name:       "bare id and red packet type",
			detail:     "李四 发出红包 ￥8.88元 交易单号：456 微信红包",
			wantDetail: "李四 发出红包 ￥8.88元",
			wantID:     "456",
			wantType:   "微信红包",
		},
		{
			name:       "type not at the end is kept",
			detail:     "微信转账 说明 ￥1元",
			wantDetail: "微信转账 说明 ￥1元",
			wantID:     artifact.Sentinel,
			wantType:   artifact.Sentinel,
		},
		{
			name:       "id removed from the middle",
			detail:     "张三 向 李四 转账 [交易单号：789]  ￥3元",
			wantDetail: "张三 向 李四 转账 ￥3元",
			wantID:     "789",
			wantType:   artifact.Sentinel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Finalize(Entry{Timestamp: "2024-01-01 10:00:00", Detail: tt.detail})
			if r.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", r.Detail, tt.wantDetail)
			}
			if r.TransactionID != tt.wantID {
				t.Errorf("TransactionID = %q, want %q", r.TransactionID, tt.wantID)
			}
			if r.TransactionType != tt.wantType {
				t.Errorf("TransactionType = %q, want %q", r.TransactionType, tt.wantType)
			}
		})
	}
}

func TestFinalize_NoEmptyFields(t *testing.T) {
	inputs := []Entry{
		{},
		{Timestamp: " ", Detail: "\t"},
		{Timestamp: "2024-01-01 10:00:00", HeaderInfo: HeaderInfo{SelfName: "张三"}, Detail: "微信红包"},
	}
	for _, e := range inputs {
		for i, cell := range Finalize(e).Row() {
			if strings.TrimSpace(cell) == "" {
				t.Errorf("Finalize(%+v) left column %s empty", e, artifact.LedgerColumns[i])
			}
		}
	}
}

func TestPipeline_EndToEndExample(t *testing.T) {
	ctx := context.Background()
	segments := []RawSegment{{
		SourceFile: "page1.html",
		Header:     "x/微信/张三(wx001)/流水记录/李四（wx002）",
		Body:       "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元 [交易单号：123] 微信转账",
	}}

	records := FinalizeAll(ctx, Clean(ctx, ParseSegments(ctx, segments)))
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	got := map[string]string{}
	for i, cell := range records[0].Row() {
		got[artifact.LedgerColumns[i]] = cell
	}
	want := map[string]string{
		"时间":    "2024-01-01 10:00:00",
		"平台":    "微信",
		"检材微信名": "张三",
		"微信号":   "wx001",
		"对方微信名": "李四",
		"对方微信号": "wx002",
		"交易明细":  "2024-01-01 10:00:00 张三 向 李四 转账 ￥100.00元",
		"交易单号":  "123",
		"交易方式":  "微信转账",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ledger row = %v, want %v", got, want)
	}
}

func TestRecordsFromTable_RoundTrip(t *testing.T) {
	in := []Record{Finalize(Entry{
		Timestamp:  "2024-01-01 10:00:00",
		HeaderInfo: HeaderInfo{Platform: "微信", SelfName: "张三", SelfID: "wx001", CounterpartName: "李四", CounterpartID: "wx002"},
		Detail:     "张三 向 李四 转账 ￥1元 微信转账",
	})}

	out, err := RecordsFromTable(LedgerTable(in))
	if err != nil {
		t.Fatalf("RecordsFromTable: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("RecordsFromTable() = %+v, want %+v", out, in)
	}
}

func TestRecordsFromTable_MissingColumn(t *testing.T) {
	if _, err := RecordsFromTable(artifact.NewTable(artifact.EntryColumns)); err == nil {
		t.Error("expected error for a table without ledger columns")
	}
}
