package model

// Event payloads. Integers wider than 64 bits are decimal strings; sqrt
// ratios are 64.128 fixed-point values.

type InitializeData struct {
	Caller    string `json:"caller"`
	SqrtRatio string `json:"sqrt_ratio"`
	Tick      int32  `json:"tick"`
}

// SwapData deltas are pool-side: positive is paid in, negative paid out.
type SwapData struct {
	Caller    string `json:"caller"`
	Delta0    string `json:"delta0"`
	Delta1    string `json:"delta1"`
	Fee       string `json:"fee"`
	FeeToken1 bool   `json:"fee_token1"`
	SqrtRatio string `json:"sqrt_ratio"`
	Tick      int32  `json:"tick"`
	Liquidity string `json:"liquidity"`
	Reserve0  string `json:"reserve0"`
	Reserve1  string `json:"reserve1"`
}

type PositionData struct {
	Owner          string `json:"owner"`
	Salt           string `json:"salt"`
	Lower          int32  `json:"lower"`
	Upper          int32  `json:"upper"`
	LiquidityDelta string `json:"liquidity_delta"`
	Liquidity      string `json:"liquidity"`
	Delta0         string `json:"delta0"`
	Delta1         string `json:"delta1"`
}

type FeesData struct {
	Owner   string `json:"owner"`
	Salt    string `json:"salt"`
	Lower   int32  `json:"lower"`
	Upper   int32  `json:"upper"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

type HookFaultData struct {
	Extension string `json:"extension"`
	Hook      string `json:"hook"`
	Error     string `json:"error"`
}

// VirtualOrdersData describes one settlement window of the virtual order
// extension.
type VirtualOrdersData struct {
	From      uint64 `json:"from"`
	To        uint64 `json:"to"`
	SaleRate0 string `json:"sale_rate0"`
	SaleRate1 string `json:"sale_rate1"`
	Sold0     string `json:"sold0"`
	Sold1     string `json:"sold1"`
	Bought0   string `json:"bought0"`
	Bought1   string `json:"bought1"`
}

// OrderRef identifies a virtual order inside its pool.
type OrderRef struct {
	Owner      string `json:"owner"`
	Salt       string `json:"salt"`
	SellToken1 bool   `json:"sell_token1"`
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
}

type OrderData struct {
	OrderRef
	SaleRateDelta string `json:"sale_rate_delta"`
	SaleRate      string `json:"sale_rate"`
	Amount        string `json:"amount"`
}

type ProceedsData struct {
	OrderRef
	Amount string `json:"amount"`
	Refund string `json:"refund"`
}
