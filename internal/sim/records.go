package sim

import (
	"math/big"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/twamm"
)

// PoolMeta describes a pool key for records.
func PoolMeta(key core.PoolKey) model.PoolMeta {
	meta := model.PoolMeta{
		Token0:      key.Token0.Hex(),
		Token1:      key.Token1.Hex(),
		Fee:         key.Fee,
		TickSpacing: key.TickSpacing,
	}
	if key.HasExtension() {
		meta.Extension = key.Extension.Hex()
	}
	return meta
}

// payload converts an engine event into its JSON payload.
func payload(ev core.Event) interface{} {
	switch e := ev.(type) {
	case core.PoolInitialized:
		return model.InitializeData{Caller: e.Caller.Hex(), SqrtRatio: e.SqrtRatio.String(), Tick: e.Tick}
	case core.Swapped:
		return model.SwapData{
			Caller:    e.Caller.Hex(),
			Delta0:    str(e.Delta0),
			Delta1:    str(e.Delta1),
			Fee:       str(e.Fee),
			FeeToken1: e.FeeToken1,
			SqrtRatio: e.SqrtRatio.String(),
			Tick:      e.Tick,
			Liquidity: str(e.Liquidity),
			Reserve0:  str(e.Reserve0),
			Reserve1:  str(e.Reserve1),
		}
	case core.PositionUpdated:
		return model.PositionData{
			Owner:          e.Position.Owner.Hex(),
			Salt:           e.Position.Salt.Hex(),
			Lower:          e.Position.Lower,
			Upper:          e.Position.Upper,
			LiquidityDelta: str(e.LiquidityDelta),
			Liquidity:      str(e.Liquidity),
			Delta0:         str(e.Delta0),
			Delta1:         str(e.Delta1),
		}
	case core.FeesCollected:
		return model.FeesData{
			Owner:   e.Position.Owner.Hex(),
			Salt:    e.Position.Salt.Hex(),
			Lower:   e.Position.Lower,
			Upper:   e.Position.Upper,
			Amount0: str(e.Amount0),
			Amount1: str(e.Amount1),
		}
	case core.HookFaulted:
		return model.HookFaultData{Extension: e.Extension.Hex(), Hook: e.Hook, Error: e.Error}
	case twamm.VirtualOrdersExecuted:
		return model.VirtualOrdersData{
			From:      e.From,
			To:        e.To,
			SaleRate0: str(e.SaleRate0),
			SaleRate1: str(e.SaleRate1),
			Sold0:     str(e.Sold0),
			Sold1:     str(e.Sold1),
			Bought0:   str(e.Bought0),
			Bought1:   str(e.Bought1),
		}
	case twamm.OrderUpdated:
		return model.OrderData{
			OrderRef:      orderRef(e.Order),
			SaleRateDelta: str(e.SaleRateDelta),
			SaleRate:      str(e.SaleRate),
			Amount:        str(e.Amount),
		}
	case twamm.ProceedsCollected:
		return model.ProceedsData{OrderRef: orderRef(e.Order), Amount: str(e.Amount), Refund: str(e.Refund)}
	default:
		return ev
	}
}

func orderRef(k twamm.OrderKey) model.OrderRef {
	return model.OrderRef{
		Owner:      k.Owner.Hex(),
		Salt:       k.Salt.Hex(),
		SellToken1: k.SellToken1,
		Start:      k.Start,
		End:        k.End,
	}
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
