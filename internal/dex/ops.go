package dex

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/model"
)

// PoolRef describes a deployed V3 pool as an engine pool. V3 fees are in
// hundredths of a basis point, the same unit as FeePips.
func PoolRef(meta model.V3PoolMeta) model.PoolRef {
	return model.PoolRef{
		Token0:      meta.Token0,
		Token1:      meta.Token1,
		FeePips:     meta.Fee,
		TickSpacing: uint32(meta.TickSpacing),
	}
}

// InitializeOp seeds the engine pool at the price slot0 reported.
func InitializeOp(meta model.V3PoolMeta, at uint64) (model.Op, error) {
	if meta.Slot0 == nil {
		return model.Op{}, fmt.Errorf("pool %s: slot0 not loaded", meta.Address)
	}
	x96, ok := new(big.Int).SetString(meta.Slot0.SqrtPriceX96, 10)
	if !ok {
		return model.Op{}, fmt.Errorf("pool %s: invalid sqrtPriceX96 %q", meta.Address, meta.Slot0.SqrtPriceX96)
	}
	sr, err := fixedpoint.FromX96(x96)
	if err != nil {
		return model.Op{}, fmt.Errorf("pool %s: %w", meta.Address, err)
	}
	return model.Op{Kind: model.OpInitialize, At: at, Pool: PoolRef(meta), SqrtRatio: sr.String()}, nil
}

// ToOp maps a decoded V3 log onto the engine operation that reproduces it.
// Swaps become exact-input swaps of the amount paid in, limited at the price
// the pool reported afterwards. Zero-liquidity burns only poke fees and are
// skipped, as are logs that carry nothing to apply.
func ToOp(ev *model.V3Event, pool model.PoolRef) (model.Op, bool) {
	if ev == nil {
		return model.Op{}, false
	}
	op := model.Op{At: ev.Time, Pool: pool}
	switch ev.Name {
	case model.V3Swap:
		if ev.Amount0 == nil || ev.Amount1 == nil || ev.SqrtPriceX96 == nil {
			return model.Op{}, false
		}
		op.Kind = model.OpSwap
		op.Caller = ev.Sender
		switch {
		case ev.Amount0.Sign() > 0:
			op.Amount = ev.Amount0.String()
		case ev.Amount1.Sign() > 0:
			op.Amount = ev.Amount1.String()
			op.IsToken1 = true
		default:
			return model.Op{}, false
		}
		limit, err := fixedpoint.FromX96(ev.SqrtPriceX96)
		if err != nil {
			return model.Op{}, false
		}
		op.SqrtRatioLimit = limit.String()
	case model.V3Mint, model.V3Burn:
		if ev.Amount == nil || ev.Amount.Sign() == 0 {
			return model.Op{}, false
		}
		op.Kind = model.OpModifyPosition
		op.Caller = ev.Owner
		op.Lower = ev.TickLower
		op.Upper = ev.TickUpper
		delta := new(big.Int).Set(ev.Amount)
		if ev.Name == model.V3Burn {
			delta.Neg(delta)
		}
		op.LiquidityDelta = delta.String()
	case model.V3Collect:
		op.Kind = model.OpCollectFees
		op.Caller = ev.Owner
		op.Lower = ev.TickLower
		op.Upper = ev.TickUpper
	default:
		return model.Op{}, false
	}
	return op, true
}
