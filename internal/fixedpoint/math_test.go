package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegInt128RejectsMinimum(t *testing.T) {
	_, err := NegInt128(MinInt128)
	require.True(t, errors.Is(err, ErrOverflow))

	neg, err := NegInt128(MaxInt128)
	require.NoError(t, err)
	require.Equal(t, 0, neg.Cmp(new(big.Int).Add(MinInt128, big.NewInt(1))))
}

func TestMulDivRounding(t *testing.T) {
	down, err := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2), false)
	require.NoError(t, err)
	require.Equal(t, int64(10), down.Int64())

	up, err := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2), true)
	require.NoError(t, err)
	require.Equal(t, int64(11), up.Int64())

	exact, err := MulDiv(big.NewInt(8), big.NewInt(3), big.NewInt(2), true)
	require.NoError(t, err)
	require.Equal(t, int64(12), exact.Int64())

	_, err = MulDiv(MaxUint256, big.NewInt(2), big.NewInt(1), false)
	require.True(t, errors.Is(err, ErrOverflow))

	_, err = MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0), false)
	require.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestRangeChecks(t *testing.T) {
	require.NoError(t, CheckUint128(MaxUint128))
	require.Error(t, CheckUint128(Q128))
	require.Error(t, CheckUint128(big.NewInt(-1)))
	require.NoError(t, CheckInt128(MinInt128))
	require.Error(t, CheckInt128(new(big.Int).Sub(MinInt128, big.NewInt(1))))
}
