package model

import (
	"encoding/json"
	"testing"
)

func TestSwapDataJSONStringFields(t *testing.T) {
	payload := SwapData{
		Caller:    "0x1111111111111111111111111111111111111111",
		Delta0:    "12345678901234567890123",
		Delta1:    "-42",
		Fee:       "7",
		SqrtRatio: "340282366920938463463374607431768211456",
		Tick:      10,
		Liquidity: "5000000000000000000",
		Reserve0:  "1",
		Reserve1:  "2",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, field := range []string{"delta0", "delta1", "fee", "sqrt_ratio", "liquidity", "reserve0"} {
		if _, ok := decoded[field].(string); !ok {
			t.Fatalf("%s should be string", field)
		}
	}
}

func TestOrderDataFlattensOrderRef(t *testing.T) {
	payload := OrderData{
		OrderRef:      OrderRef{Owner: "0xabc", SellToken1: true, Start: 256, End: 4096},
		SaleRateDelta: "100",
		SaleRate:      "100",
		Amount:        "-3",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["owner"] != "0xabc" || decoded["sell_token1"] != true {
		t.Fatalf("order ref not flattened: %s", data)
	}
	if decoded["end"].(float64) != 4096 {
		t.Fatalf("end = %v", decoded["end"])
	}
}

func TestEventRecordLineKeepsPayloadRaw(t *testing.T) {
	rec := EventRecord{
		RunID:     "run",
		OpIndex:   3,
		Time:      65536,
		PoolID:    "0x01",
		EventName: "FeesCollected",
		Decoded:   FeesData{Owner: "0xabc", Amount0: "1", Amount1: "0"},
		PoolMeta:  PoolMeta{Token0: "0xa", Token1: "0xb", Fee: 1 << 63},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var line EventRecordLine
	if err := json.Unmarshal(data, &line); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if line.PoolMeta.Fee != 1<<63 {
		t.Fatalf("fee = %d", line.PoolMeta.Fee)
	}
	var fees FeesData
	if err := json.Unmarshal(line.Decoded, &fees); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if fees.Owner != "0xabc" || fees.Amount0 != "1" {
		t.Fatalf("unexpected payload %+v", fees)
	}
	if line.Source != nil {
		t.Fatalf("source should be omitted")
	}
}
