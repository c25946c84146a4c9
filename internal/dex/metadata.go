package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// ContractCaller executes read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Load returns cached metadata, fetching it on a miss. Failed fetches are
// cached too so a broken token is only asked once.
func (c *TokenMetaCache) Load(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) model.TokenMeta {
	if meta, ok := c.Get(token); ok {
		return meta
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil && logger != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	c.Set(token, meta)
	return meta
}

func call(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, block *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchPoolMeta loads the immutable pool fields, and slot0 plus liquidity as
// of blockNumber (latest when zero).
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber uint64) (model.V3PoolMeta, error) {
	meta := model.V3PoolMeta{Address: pool.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	poolABI, err := v3PoolABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse pool abi: %w", err)
	}
	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	get := func(method string) (interface{}, error) {
		values, err := call(ctx, caller, pool, poolABI, block, method)
		if err != nil {
			return nil, err
		}
		return values[0], nil
	}

	for _, f := range []struct {
		method string
		dst    *string
	}{{"token0", &meta.Token0}, {"token1", &meta.Token1}} {
		v, err := get(f.method)
		if err != nil {
			return meta, err
		}
		addr, err := asAddress(v)
		if err != nil {
			return meta, fmt.Errorf("%s: %w", f.method, err)
		}
		*f.dst = addr.Hex()
	}

	v, err := get("fee")
	if err != nil {
		return meta, err
	}
	fee, err := asBigInt(v)
	if err != nil {
		return meta, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	v, err = get("tickSpacing")
	if err != nil {
		return meta, err
	}
	spacing, err := asBigInt(v)
	if err != nil {
		return meta, fmt.Errorf("tick spacing: %w", err)
	}
	if meta.TickSpacing, err = int24FromBig(spacing); err != nil {
		return meta, fmt.Errorf("tick spacing: %w", err)
	}

	v, err = get("liquidity")
	if err != nil {
		return meta, err
	}
	liquidity, err := asBigInt(v)
	if err != nil {
		return meta, fmt.Errorf("liquidity: %w", err)
	}
	meta.Liquidity = liquidity.String()

	values, err := call(ctx, caller, pool, poolABI, block, "slot0")
	if err != nil {
		return meta, err
	}
	if len(values) < 2 {
		return meta, fmt.Errorf("slot0: %d values", len(values))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return meta, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return meta, fmt.Errorf("slot0 tick: %w", err)
	}
	meta.Slot0 = &model.PoolSlot0{SqrtPriceX96: sqrt.String(), Tick: tick}
	return meta, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls. Only decimals is
// required; symbol and name fall back to the bytes32 variants.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	stringABI, err := erc20ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := call(ctx, caller, token, stringABI, nil, "decimals")
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, err
	}

	text := func(method string) string {
		if values, err := call(ctx, caller, token, stringABI, nil, method); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := call(ctx, caller, token, bytes32ABI, nil, method)
		if err == nil {
			if s, ok := bytes32ToString(values[0]); ok {
				return s
			}
		}
		if logger != nil {
			logger.Debug("token call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		}
		return ""
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")
	return meta, nil
}

// FetchBalance returns token.balanceOf(account) at blockNumber (latest when zero).
func FetchBalance(ctx context.Context, caller ContractCaller, token, account common.Address, blockNumber uint64) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	parsed, err := erc20ABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	values, err := call(ctx, caller, token, parsed, block, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	if value.Cmp(big.NewInt(-1<<23)) < 0 || value.Cmp(big.NewInt(1<<23-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
