package model

import "encoding/json"

// EventRecord is an engine event enriched with run and pool metadata, as
// written to the events JSONL.
type EventRecord struct {
	RunID     string      `json:"run_id"`
	OpIndex   int         `json:"op_index"`
	Seq       int         `json:"seq"`
	Time      uint64      `json:"time"`
	PoolID    string      `json:"pool_id"`
	EventName string      `json:"event_name"`
	Decoded   interface{} `json:"decoded"`
	PoolMeta  PoolMeta    `json:"pool_meta"`
	Source    *SourceRef  `json:"source,omitempty"`
}

// EventRecordLine is EventRecord as read back, with the payload left raw
// until the event name is known.
type EventRecordLine struct {
	RunID     string          `json:"run_id"`
	OpIndex   int             `json:"op_index"`
	Seq       int             `json:"seq"`
	Time      uint64          `json:"time"`
	PoolID    string          `json:"pool_id"`
	EventName string          `json:"event_name"`
	Decoded   json.RawMessage `json:"decoded"`
	PoolMeta  PoolMeta        `json:"pool_meta"`
	Source    *SourceRef      `json:"source,omitempty"`
}

// SourceRef ties a replayed event to the chain log it came from.
type SourceRef struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Topic0      string `json:"topic0,omitempty"`
}

// PoolMeta is the immutable identity of an engine pool.
type PoolMeta struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint64 `json:"fee"`
	TickSpacing uint32 `json:"tick_spacing"`
	Extension   string `json:"extension,omitempty"`
}
