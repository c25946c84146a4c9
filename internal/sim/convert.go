package sim

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityEngine/internal/core"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tickmath"
	"liquidityEngine/internal/twamm"
)

// FeeFromPips converts a fee in parts per million to the engine's 0.64
// fixed-point fee, rounding down.
func FeeFromPips(pips uint32) uint64 {
	fee := new(big.Int).Lsh(big.NewInt(int64(pips)), 64)
	return fee.Div(fee, big.NewInt(1_000_000)).Uint64()
}

// PoolKey resolves a scenario pool reference. Pools flagged for virtual
// orders name the extension at ext.
func PoolKey(ref model.PoolRef, ext common.Address) (core.PoolKey, error) {
	token0, err := parseAddress("token0", ref.Token0)
	if err != nil {
		return core.PoolKey{}, err
	}
	token1, err := parseAddress("token1", ref.Token1)
	if err != nil {
		return core.PoolKey{}, err
	}
	key := core.PoolKey{Token0: token0, Token1: token1, Fee: ref.Fee, TickSpacing: ref.TickSpacing}
	if ref.FeePips > 0 {
		key.Fee = FeeFromPips(ref.FeePips)
	}
	if ref.TWAMM {
		key.Extension = ext
	}
	return key, nil
}

// PoolRefFor is the inverse of PoolKey for pools whose extension, if any, is
// the virtual order extension.
func PoolRefFor(key core.PoolKey) model.PoolRef {
	return model.PoolRef{
		Token0:      key.Token0.Hex(),
		Token1:      key.Token1.Hex(),
		Fee:         key.Fee,
		TickSpacing: key.TickSpacing,
		TWAMM:       key.HasExtension(),
	}
}

func parseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// parseHash accepts a 0x hex hash or any other string, which is hashed with
// keccak so that scenarios can use readable salts.
func parseHash(value string) common.Hash {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Hash{}
	}
	if strings.HasPrefix(value, "0x") && len(value) == 66 {
		return common.HexToHash(value)
	}
	return crypto.Keccak256Hash([]byte(value))
}

// parseInt parses a decimal or 0x-prefixed integer; empty means def.
func parseInt(field, value string, def *big.Int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	v, ok := new(big.Int).SetString(value, 0)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, value)
	}
	return v, nil
}

func parseSqrtRatio(field, value string) (fixedpoint.SqrtRatio, error) {
	v, err := parseInt(field, value, nil)
	if err != nil || v == nil {
		return fixedpoint.SqrtRatio{}, err
	}
	sr, err := fixedpoint.FromBig(v, false)
	if err != nil {
		return fixedpoint.SqrtRatio{}, fmt.Errorf("%s: %w", field, err)
	}
	return sr, nil
}

// initialRatio picks the starting price of an initialize op: an explicit
// sqrt ratio wins over a tick, and the default is tick 0.
func initialRatio(op model.Op) (fixedpoint.SqrtRatio, error) {
	if op.SqrtRatio != "" {
		return parseSqrtRatio("sqrt_ratio", op.SqrtRatio)
	}
	var tick int32
	if op.Tick != nil {
		tick = *op.Tick
	}
	return tickmath.SqrtRatioAtTick(tick)
}

func orderKey(op model.Op, caller common.Address, pool core.PoolKey) twamm.OrderKey {
	return twamm.OrderKey{
		Owner:      caller,
		Salt:       parseHash(op.Salt),
		Pool:       pool,
		SellToken1: op.SellToken1,
		Start:      op.Start,
		End:        op.End,
	}
}

// saleRateDelta is the explicit delta, or the rate that sells SellAmount over
// what is left of the order.
func saleRateDelta(op model.Op, now uint64) (*big.Int, error) {
	if op.SaleRateDelta != "" || op.SellAmount == "" {
		return parseInt("sale_rate_delta", op.SaleRateDelta, new(big.Int))
	}
	amount, err := parseInt("sell_amount", op.SellAmount, nil)
	if err != nil {
		return nil, err
	}
	from := op.Start
	if now > from {
		from = now
	}
	if op.End <= from {
		return nil, fmt.Errorf("order ends at %d before %d: %w", op.End, from, core.ErrInvalidRange)
	}
	return twamm.ComputeSaleRate(amount, op.End-from)
}
