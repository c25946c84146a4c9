package model

import "math/big"

// V3PoolMeta is what a deployed Uniswap-V3 style pool reports about itself.
// Fee is in hundredths of a basis point.
type V3PoolMeta struct {
	Address     string     `json:"address"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 includes select slot0 fields.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// V3 log names.
const (
	V3Swap    = "Swap"
	V3Mint    = "Mint"
	V3Burn    = "Burn"
	V3Collect = "Collect"
)

// V3Event is a decoded pool log. Only the fields of its Name are set.
type V3Event struct {
	Name   string
	Pool   string
	Source *SourceRef
	Time   uint64

	Sender    string
	Recipient string
	Owner     string
	TickLower int32
	TickUpper int32
	// Amount is the liquidity minted or burned.
	Amount  *big.Int
	Amount0 *big.Int
	Amount1 *big.Int

	// Swap only: the pool state after the swap.
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}
