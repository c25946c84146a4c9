package dex

import "liquidityEngine/internal/model"

// Decoder turns raw chain logs into pool events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.V3Event, error)
}
