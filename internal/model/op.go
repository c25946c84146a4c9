package model

// Op kinds understood by the simulator.
const (
	OpInitialize      = "initialize"
	OpSwap            = "swap"
	OpModifyPosition  = "modify_position"
	OpCollectFees     = "collect_fees"
	OpUpdateOrder     = "update_order"
	OpCollectProceeds = "collect_proceeds"
	OpSettle          = "settle"
	OpAdvance         = "advance"
)

// PoolRef names a pool in a scenario. Fee is the raw 0.64 fixed-point fee;
// FeePips, when set, is converted from parts per million instead.
type PoolRef struct {
	Token0      string `json:"token0" yaml:"token0" validate:"required,eth_addr"`
	Token1      string `json:"token1" yaml:"token1" validate:"required,eth_addr"`
	Fee         uint64 `json:"fee,omitempty" yaml:"fee,omitempty"`
	FeePips     uint32 `json:"fee_pips,omitempty" yaml:"fee_pips,omitempty" validate:"lt=1000000"`
	TickSpacing uint32 `json:"tick_spacing" yaml:"tick_spacing"`
	// TWAMM attaches the virtual order extension; such pools are full range.
	TWAMM bool `json:"twamm,omitempty" yaml:"twamm,omitempty"`
}

// Op is one scenario step. Amounts are decimal strings so that values past
// 64 bits survive JSON and YAML.
type Op struct {
	Kind   string  `json:"kind" yaml:"kind" validate:"required,oneof=initialize swap modify_position collect_fees update_order collect_proceeds settle advance"`
	At     uint64  `json:"at,omitempty" yaml:"at,omitempty"`
	Caller string  `json:"caller,omitempty" yaml:"caller,omitempty" validate:"omitempty,eth_addr"`
	Pool   PoolRef `json:"pool" yaml:"pool" validate:"-"`

	// initialize
	Tick      *int32 `json:"tick,omitempty" yaml:"tick,omitempty"`
	SqrtRatio string `json:"sqrt_ratio,omitempty" yaml:"sqrt_ratio,omitempty"`

	// swap
	Amount         string `json:"amount,omitempty" yaml:"amount,omitempty"`
	IsToken1       bool   `json:"is_token1,omitempty" yaml:"is_token1,omitempty"`
	SqrtRatioLimit string `json:"sqrt_ratio_limit,omitempty" yaml:"sqrt_ratio_limit,omitempty"`
	Threshold      string `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// modify_position, collect_fees
	Salt           string `json:"salt,omitempty" yaml:"salt,omitempty"`
	Lower          int32  `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper          int32  `json:"upper,omitempty" yaml:"upper,omitempty"`
	LiquidityDelta string `json:"liquidity_delta,omitempty" yaml:"liquidity_delta,omitempty"`

	// update_order, collect_proceeds
	SellToken1    bool   `json:"sell_token1,omitempty" yaml:"sell_token1,omitempty"`
	Start         uint64 `json:"start,omitempty" yaml:"start,omitempty"`
	End           uint64 `json:"end,omitempty" yaml:"end,omitempty"`
	SaleRateDelta string `json:"sale_rate_delta,omitempty" yaml:"sale_rate_delta,omitempty"`
	// SellAmount is converted to a sale rate over the order's remaining
	// duration when SaleRateDelta is empty.
	SellAmount string `json:"sell_amount,omitempty" yaml:"sell_amount,omitempty"`

	// advance
	Seconds uint64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`
}

// OpError records an op (or source log) that could not be applied.
type OpError struct {
	RunID       string `json:"run_id,omitempty"`
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
	Error       string `json:"error"`
}
