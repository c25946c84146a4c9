package model

import "strings"

// LogRecord is one raw chain log as exported by an indexer, one per JSONL
// line. Replay reads these and keeps only the pool events it understands.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
}

// Topic0 is the event signature hash, lower-cased, or "" for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return strings.ToLower(lr.Topics[0])
}

// Ref points back at the log for traceability.
func (lr LogRecord) Ref() *SourceRef {
	return &SourceRef{
		BlockNumber: lr.BlockNumber,
		TxHash:      lr.TxHash,
		LogIndex:    lr.LogIndex,
		Topic0:      lr.Topic0(),
	}
}

// Before orders logs by chain position.
func (lr LogRecord) Before(other LogRecord) bool {
	if lr.BlockNumber != other.BlockNumber {
		return lr.BlockNumber < other.BlockNumber
	}
	return lr.LogIndex < other.LogIndex
}
