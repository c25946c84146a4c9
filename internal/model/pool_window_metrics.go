package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window. Amounts are
// decimal strings scaled by token decimals when those are known.
type PoolWindowMetrics struct {
	RunID          string
	PoolID         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	Volume0        string
	Volume1        string
	Fee0           string
	Fee1           string
	VirtualSold0   string
	VirtualSold1   string
	FeeRate0       *string
	FeeRate1       *string
	TVL0           *string
	TVL1           *string
	APR            *string
	// Liquidity and SqrtRatio are taken from the last swap in the window.
	Liquidity string
	SqrtRatio string
	FeeMethod string
	TVLMethod string
}
