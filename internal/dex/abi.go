package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Uniswap-V3 style pool: the four liquidity events plus the views needed to
// seed a replay.
const v3PoolABIJSON = `[
{"type":"event","name":"Swap","anonymous":false,"inputs":[
  {"indexed":true,"name":"sender","type":"address"},
  {"indexed":true,"name":"recipient","type":"address"},
  {"indexed":false,"name":"amount0","type":"int256"},
  {"indexed":false,"name":"amount1","type":"int256"},
  {"indexed":false,"name":"sqrtPriceX96","type":"uint160"},
  {"indexed":false,"name":"liquidity","type":"uint128"},
  {"indexed":false,"name":"tick","type":"int24"}]},
{"type":"event","name":"Mint","anonymous":false,"inputs":[
  {"indexed":false,"name":"sender","type":"address"},
  {"indexed":true,"name":"owner","type":"address"},
  {"indexed":true,"name":"tickLower","type":"int24"},
  {"indexed":true,"name":"tickUpper","type":"int24"},
  {"indexed":false,"name":"amount","type":"uint128"},
  {"indexed":false,"name":"amount0","type":"uint256"},
  {"indexed":false,"name":"amount1","type":"uint256"}]},
{"type":"event","name":"Burn","anonymous":false,"inputs":[
  {"indexed":true,"name":"owner","type":"address"},
  {"indexed":true,"name":"tickLower","type":"int24"},
  {"indexed":true,"name":"tickUpper","type":"int24"},
  {"indexed":false,"name":"amount","type":"uint128"},
  {"indexed":false,"name":"amount0","type":"uint256"},
  {"indexed":false,"name":"amount1","type":"uint256"}]},
{"type":"event","name":"Collect","anonymous":false,"inputs":[
  {"indexed":true,"name":"owner","type":"address"},
  {"indexed":false,"name":"recipient","type":"address"},
  {"indexed":true,"name":"tickLower","type":"int24"},
  {"indexed":true,"name":"tickUpper","type":"int24"},
  {"indexed":false,"name":"amount0","type":"uint128"},
  {"indexed":false,"name":"amount1","type":"uint128"}]},
{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"fee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint24"}]},
{"type":"function","name":"tickSpacing","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
{"type":"function","name":"liquidity","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]},
{"type":"function","name":"slot0","stateMutability":"view","inputs":[],"outputs":[
  {"name":"sqrtPriceX96","type":"uint160"},
  {"name":"tick","type":"int24"},
  {"name":"observationIndex","type":"uint16"},
  {"name":"observationCardinality","type":"uint16"},
  {"name":"observationCardinalityNext","type":"uint16"},
  {"name":"feeProtocol","type":"uint8"},
  {"name":"unlocked","type":"bool"}]}
]`

// Some tokens return bytes32 from symbol and name, so both shapes are kept.
const erc20ABIJSON = `[
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"type":"uint256"}]}
]`

const erc20Bytes32ABIJSON = `[
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"bytes32"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"bytes32"}]}
]`

type lazyABI struct {
	once   sync.Once
	source string
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.source))
	})
	return l.parsed, l.err
}

var (
	v3PoolABI       = &lazyABI{source: v3PoolABIJSON}
	erc20ABI        = &lazyABI{source: erc20ABIJSON}
	erc20Bytes32ABI = &lazyABI{source: erc20Bytes32ABIJSON}
)

// V3PoolABI returns the parsed V3 pool ABI.
func V3PoolABI() (abi.ABI, error) {
	return v3PoolABI.get()
}
