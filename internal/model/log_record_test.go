package model

import (
	"encoding/json"
	"testing"
)

func TestLogRecordDecodesIndexerLine(t *testing.T) {
	line := `{"chain_id":56,"block_number":36000000,"block_hash":"0xabc123","tx_hash":"0xdef456","tx_index":7,` +
		`"log_index":12,"address":"0x1111111111111111111111111111111111111111","topics":["0xAAA","0xbbb"],` +
		`"data":"0xdeadbeef","removed":false,"timestamp":1700000000,"ingested_at":"2024-01-01T00:00:00Z"}`

	var lr LogRecord
	if err := json.Unmarshal([]byte(line), &lr); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if lr.Topic0() != "0xaaa" {
		t.Fatalf("topic0 = %q", lr.Topic0())
	}
	ref := lr.Ref()
	if ref.BlockNumber != 36000000 || ref.TxHash != "0xdef456" || ref.LogIndex != 12 {
		t.Fatalf("unexpected ref %+v", ref)
	}
}

func TestLogRecordOrdering(t *testing.T) {
	a := LogRecord{BlockNumber: 10, LogIndex: 5}
	b := LogRecord{BlockNumber: 10, LogIndex: 6}
	c := LogRecord{BlockNumber: 11, LogIndex: 0}
	if !a.Before(b) || !b.Before(c) || c.Before(a) {
		t.Fatalf("unexpected ordering")
	}
	if (LogRecord{}).Topic0() != "" {
		t.Fatalf("anonymous log should have empty topic0")
	}
}
