package aggregate

import (
	"math/big"
	"time"

	"liquidityEngine/internal/fixedpoint"
)

const ratioScale = 18

var yearSeconds = big.NewRat(int64(365*24*time.Hour/time.Second), 1)

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeRate(fee, tvl *big.Int) *string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() <= 0 {
		return nil
	}
	rate := new(big.Rat).SetFrac(fee, tvl).FloatString(ratioScale)
	return &rate
}

// spotPrice is token1 per token0 at a 64.128 sqrt ratio, exactly.
func spotPrice(sqrtRatio string) (*big.Rat, bool) {
	sr, ok := new(big.Int).SetString(sqrtRatio, 10)
	if !ok || sr.Sign() == 0 {
		return nil, false
	}
	sq := new(big.Int).Mul(sr, sr)
	return new(big.Rat).SetFrac(sq, new(big.Int).Mul(fixedpoint.Q128, fixedpoint.Q128)), true
}

// computeAPR annualises the window's fee yield. With a price both tokens are
// valued in token1; without one, only a pool that earned fees on a single
// side gets a figure.
func computeAPR(fee0, fee1, tvl0, tvl1 *big.Int, sqrtRatio string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}

	var yield *big.Rat
	if price, ok := spotPrice(sqrtRatio); ok {
		fees := value(fee0, fee1, price)
		tvl := value(tvl0, tvl1, price)
		if tvl.Sign() <= 0 {
			return nil
		}
		yield = fees.Quo(fees, tvl)
	} else {
		rate0, rate1 := computeRate(fee0, tvl0), computeRate(fee1, tvl1)
		var selected *string
		switch {
		case rate0 != nil && rate1 == nil:
			selected = rate0
		case rate1 != nil && rate0 == nil:
			selected = rate1
		default:
			return nil
		}
		yield, _ = new(big.Rat).SetString(*selected)
	}

	apr := yield.Mul(yield, yearSeconds)
	apr.Quo(apr, big.NewRat(int64(windowSeconds), 1))
	text := apr.FloatString(ratioScale)
	return &text
}

func value(amount0, amount1 *big.Int, price *big.Rat) *big.Rat {
	out := new(big.Rat)
	if amount0 != nil {
		out.Add(out, new(big.Rat).Mul(new(big.Rat).SetInt(amount0), price))
	}
	if amount1 != nil {
		out.Add(out, new(big.Rat).SetInt(amount1))
	}
	return out
}
