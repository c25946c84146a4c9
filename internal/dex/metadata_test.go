package dex

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCaller answers calls by method selector with canned outputs.
type fakeCaller struct {
	t       *testing.T
	methods []abi.Method
	returns map[string][]interface{}
	blocks  []*big.Int
	calls   int
}

func newFakeCaller(t *testing.T, parsed ...abi.ABI) *fakeCaller {
	f := &fakeCaller{t: t, returns: make(map[string][]interface{})}
	for _, p := range parsed {
		for _, m := range p.Methods {
			f.methods = append(f.methods, m)
		}
	}
	return f
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	f.blocks = append(f.blocks, block)
	for _, m := range f.methods {
		if !bytes.Equal(m.ID, msg.Data[:4]) {
			continue
		}
		out, ok := f.returns[m.Sig]
		if !ok {
			continue
		}
		packed, err := m.Outputs.Pack(out...)
		require.NoError(f.t, err)
		return packed, nil
	}
	return nil, errors.New("execution reverted")
}

func TestFetchPoolMeta(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	caller := newFakeCaller(t, poolABI)
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller.returns["token0()"] = []interface{}{token0}
	caller.returns["token1()"] = []interface{}{token1}
	caller.returns["fee()"] = []interface{}{big.NewInt(2500)}
	caller.returns["tickSpacing()"] = []interface{}{big.NewInt(50)}
	caller.returns["liquidity()"] = []interface{}{big.NewInt(1e18)}
	caller.returns["slot0()"] = []interface{}{
		new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(-7), uint16(0), uint16(1), uint16(1), uint8(0), true,
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	meta, err := FetchPoolMeta(context.Background(), caller, pool, 100)
	require.NoError(t, err)
	require.Equal(t, token0.Hex(), meta.Token0)
	require.Equal(t, token1.Hex(), meta.Token1)
	require.Equal(t, uint32(2500), meta.Fee)
	require.Equal(t, int32(50), meta.TickSpacing)
	require.Equal(t, "1000000000000000000", meta.Liquidity)
	require.NotNil(t, meta.Slot0)
	require.Equal(t, int32(-7), meta.Slot0.Tick)
	for _, block := range caller.blocks {
		require.Equal(t, uint64(100), block.Uint64())
	}

	delete(caller.returns, "slot0()")
	_, err = FetchPoolMeta(context.Background(), caller, pool, 0)
	require.Error(t, err)

	_, err = FetchPoolMeta(context.Background(), nil, pool, 0)
	require.Error(t, err)
}

func TestFetchTokenMetaFallsBackToBytes32(t *testing.T) {
	stringABI, err := erc20ABI.get()
	require.NoError(t, err)
	bytes32ABI, err := erc20Bytes32ABI.get()
	require.NoError(t, err)

	var symbol [32]byte
	copy(symbol[:], "MKR")
	// symbol answers with bytes32, which does not unpack as a string.
	caller := newFakeCaller(t)
	caller.methods = []abi.Method{stringABI.Methods["decimals"], stringABI.Methods["name"], bytes32ABI.Methods["symbol"]}
	caller.returns["decimals()"] = []interface{}{uint8(18)}
	caller.returns["name()"] = []interface{}{"Maker"}
	caller.returns["symbol()"] = []interface{}{symbol}

	token := common.HexToAddress("0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2")
	meta, err := FetchTokenMeta(context.Background(), caller, token, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint8(18), meta.Decimals)
	require.Equal(t, "MKR", meta.Symbol)
	require.Equal(t, "Maker", meta.Name)

	cache := NewTokenMetaCache()
	calls := caller.calls
	require.Equal(t, meta, cache.Load(context.Background(), caller, token, zap.NewNop()))
	require.Greater(t, caller.calls, calls)
	calls = caller.calls
	cache.Load(context.Background(), caller, token, zap.NewNop())
	require.Equal(t, calls, caller.calls)
}

func TestFetchBalance(t *testing.T) {
	stringABI, err := erc20ABI.get()
	require.NoError(t, err)
	caller := newFakeCaller(t, stringABI)
	caller.returns["balanceOf(address)"] = []interface{}{big.NewInt(42)}

	token := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	balance, err := FetchBalance(context.Background(), caller, token, common.HexToAddress("0x01"), 7)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())
	require.Equal(t, uint64(7), caller.blocks[0].Uint64())
}
