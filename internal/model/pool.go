package model

import "time"

// Pool is an engine pool as stored, keyed by run and pool id. Fee is the
// raw 0.64 fixed-point fee and is stored as a decimal string.
type Pool struct {
	RunID       string `json:"run_id"`
	PoolID      string `json:"pool_id"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         string `json:"fee"`
	TickSpacing uint32 `json:"tick_spacing"`
	Extension   string `json:"extension,omitempty"`
	FirstSeen   uint64 `json:"first_seen"`
}

// PoolSnapshot is a pool's state at the end of a run.
type PoolSnapshot struct {
	RunID             string
	PoolID            string
	SqrtRatio         string
	Tick              int32
	Liquidity         string
	Reserve0          string
	Reserve1          string
	FeesPerLiquidity0 string
	FeesPerLiquidity1 string
	UnattributedFee0  string
	UnattributedFee1  string
	HookFaults        uint64
	TakenAt           time.Time
}
