package storage

import "liquidityEngine/internal/model"

// EventSink receives engine event records in commit order.
type EventSink interface {
	PutEventBatch(records []model.EventRecord) error
}

// ErrorSink receives ops that failed to apply.
type ErrorSink interface {
	PutOpErrors(errs []model.OpError) error
}

// Discard drops everything written to it.
type Discard struct{}

func (Discard) PutEventBatch([]model.EventRecord) error { return nil }
func (Discard) PutOpErrors([]model.OpError) error       { return nil }
