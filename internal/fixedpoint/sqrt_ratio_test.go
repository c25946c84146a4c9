package fixedpoint

import (
	"encoding/json"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestFromFixedPicksSmallestShift(t *testing.T) {
	tests := []struct {
		name  string
		value *big.Int
		exp   uint32
	}{
		{"one", new(big.Int).Set(Q128), 2},
		{"2^100", new(big.Int).Lsh(big.NewInt(1), 100), 1},
		{"small", big.NewInt(1 << 40), 0},
		{"below 2^96", new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(4)), 0},
		{"2^160", new(big.Int).Lsh(big.NewInt(1), 160), 3},
		{"2^140", new(big.Int).Lsh(big.NewInt(1), 140), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr, err := FromBig(tt.value, false)
			require.NoError(t, err)
			require.Equal(t, tt.exp, sr.hi>>30)
			require.Equal(t, 0, sr.ToBig().Cmp(tt.value))
		})
	}
}

func TestFromFixedRounding(t *testing.T) {
	// 2^128 + 1 needs 129 bits and is stored with a 66-bit shift.
	v := new(big.Int).Add(Q128, big.NewInt(1))

	down, err := FromBig(v, false)
	require.NoError(t, err)
	require.Equal(t, 0, down.ToBig().Cmp(Q128))

	up, err := FromBig(v, true)
	require.NoError(t, err)
	want := new(big.Int).Add(Q128, new(big.Int).Lsh(big.NewInt(1), 66))
	require.Equal(t, 0, up.ToBig().Cmp(want))
	require.True(t, up.Gt(down))
}

func TestFromFixedOverflow(t *testing.T) {
	_, err := FromBig(new(big.Int).Lsh(big.NewInt(1), 192), false)
	require.True(t, errors.Is(err, ErrOverflow))

	_, err = FromBig(big.NewInt(-1), false)
	require.True(t, errors.Is(err, ErrOverflow))
}

func TestCompressedOrderMatchesFixedOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		a := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), uint(rng.Intn(191)+1)))
		b := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), uint(rng.Intn(191)+1)))
		sa, err := FromBig(a, rng.Intn(2) == 0)
		require.NoError(t, err)
		sb, err := FromBig(b, rng.Intn(2) == 0)
		require.NoError(t, err)
		require.Equal(t, sa.ToBig().Cmp(sb.ToBig()), sa.Cmp(sb), "a=%s b=%s", a, b)

		again, err := FromFixed(sa.ToFixed(), false)
		require.NoError(t, err)
		require.Equal(t, sa, again)
	}
}

func TestSqrtRatioJSON(t *testing.T) {
	sr, err := FromFixed(uint256.NewInt(0).Lsh(uint256.NewInt(3), 127), false)
	require.NoError(t, err)

	data, err := json.Marshal(struct {
		Price SqrtRatio `json:"price"`
	}{sr})
	require.NoError(t, err)

	var decoded struct {
		Price SqrtRatio `json:"price"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, sr, decoded.Price)
}
