package tickmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
)

const (
	// MinTick and MaxTick bound the 1.0001 price grid.
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	ErrTickOutOfBounds       = errors.New("tick out of bounds")
	ErrSqrtRatioOutOfBounds  = errors.New("sqrt ratio out of bounds")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

var (
	// MinSqrtRatio and MaxSqrtRatio are the sqrt ratios at MinTick and MaxTick.
	MinSqrtRatio fixedpoint.SqrtRatio
	MaxSqrtRatio fixedpoint.SqrtRatio

	maxUint256 = uint256.MustFromBig(fixedpoint.MaxUint256)

	// sqrt(1.0001^-(2^i)) in Q128.128 for i in 0..19; ratioOne seeds even ticks.
	ratioOne       = uint256.MustFromHex("0x100000000000000000000000000000000")
	ratioConstants = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

func init() {
	var err error
	if MinSqrtRatio, err = SqrtRatioAtTick(MinTick); err != nil {
		panic(err)
	}
	if MaxSqrtRatio, err = SqrtRatioAtTick(MaxTick); err != nil {
		panic(err)
	}
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a compressed 64.128 value,
// rounded down.
func SqrtRatioAtTick(tick int32) (fixedpoint.SqrtRatio, error) {
	if tick < MinTick || tick > MaxTick {
		return fixedpoint.SqrtRatio{}, fmt.Errorf("tick %d: %w", tick, ErrTickOutOfBounds)
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	ratio := new(uint256.Int).Set(ratioOne)
	for i := 0; i < len(ratioConstants); i++ {
		if absTick&(1<<i) != 0 {
			ratio.Mul(ratio, ratioConstants[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	return fixedpoint.FromFixed(ratio, false)
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sr.
func TickAtSqrtRatio(sr fixedpoint.SqrtRatio) (int32, error) {
	if sr.Lt(MinSqrtRatio) || sr.Gt(MaxSqrtRatio) {
		return 0, fmt.Errorf("sqrt ratio %s: %w", sr, ErrSqrtRatioOutOfBounds)
	}

	low, high := MinTick, MaxTick
	tick := MinTick
	for low <= high {
		mid := low + (high-low)/2
		atMid, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if atMid.Cmp(sr) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

// CheckSqrtRatio reports whether sr lies on the supported price range.
func CheckSqrtRatio(sr fixedpoint.SqrtRatio) error {
	if sr.Lt(MinSqrtRatio) || sr.Gt(MaxSqrtRatio) {
		return fmt.Errorf("sqrt ratio %s: %w", sr, ErrSqrtRatioOutOfBounds)
	}
	return nil
}

// MinFixed and MaxFixed expose the bounds as 64.128 big integers.
func MinFixed() *big.Int { return MinSqrtRatio.ToBig() }
func MaxFixed() *big.Int { return MaxSqrtRatio.ToBig() }
