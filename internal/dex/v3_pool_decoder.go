package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityEngine/internal/model"
)

// DecoderConfig configures decoder behavior. Topic0Map adds signatures of
// forks whose events share the V3 layout, keyed by topic0.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// V3PoolDecoder decodes PancakeSwap V3 / Uniswap V3 pool events.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	topicToName := make(map[string]string, 4+len(cfg.Topic0Map))
	for _, name := range []string{model.V3Swap, model.V3Mint, model.V3Burn, model.V3Collect} {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}
	for topic0, name := range cfg.Topic0Map {
		normalized := normalizeEventName(name)
		if normalized == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 != "" {
			topicToName[strings.ToLower(topic0)] = normalized
		}
	}

	return &V3PoolDecoder{poolABI: poolABI, topicToName: topicToName}, nil
}

// Topics lists every topic0 the decoder accepts, for log filters.
func (d *V3PoolDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok && topic0 != ""
}

// Decode converts a LogRecord into a V3Event.
func (d *V3PoolDecoder) Decode(log model.LogRecord) (*model.V3Event, error) {
	name, ok := d.topicToName[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %q", log.Topic0())
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	event := d.poolABI.Events[name]
	values, err := unpackLog(event, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	f := fields{values: values}
	ev := &model.V3Event{
		Name:   name,
		Pool:   common.HexToAddress(log.Address).Hex(),
		Source: log.Ref(),
		Time:   log.Timestamp,
	}
	switch name {
	case model.V3Swap:
		ev.Sender = f.address("sender")
		ev.Recipient = f.address("recipient")
		ev.Amount0 = f.bigInt("amount0")
		ev.Amount1 = f.bigInt("amount1")
		ev.SqrtPriceX96 = f.bigInt("sqrtPriceX96")
		ev.Liquidity = f.bigInt("liquidity")
		ev.Tick = f.int24("tick")
	case model.V3Mint, model.V3Burn:
		if name == model.V3Mint {
			ev.Sender = f.address("sender")
		}
		ev.Owner = f.address("owner")
		ev.TickLower = f.int24("tickLower")
		ev.TickUpper = f.int24("tickUpper")
		ev.Amount = f.bigInt("amount")
		ev.Amount0 = f.bigInt("amount0")
		ev.Amount1 = f.bigInt("amount1")
	case model.V3Collect:
		ev.Owner = f.address("owner")
		ev.Recipient = f.address("recipient")
		ev.TickLower = f.int24("tickLower")
		ev.TickUpper = f.int24("tickUpper")
		ev.Amount0 = f.bigInt("amount0")
		ev.Amount1 = f.bigInt("amount1")
	}
	if f.err != nil {
		return nil, fmt.Errorf("%s: %w", name, f.err)
	}
	return ev, nil
}

func normalizeEventName(name string) string {
	for _, known := range []string{model.V3Swap, model.V3Mint, model.V3Burn, model.V3Collect} {
		if strings.EqualFold(strings.TrimSpace(name), known) {
			return known
		}
	}
	return ""
}

// unpackLog merges the indexed topics and the data section into one map
// keyed by argument name.
func unpackLog(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	return values, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// fields reads typed values out of an unpacked argument map, keeping the
// first error.
type fields struct {
	values map[string]interface{}
	err    error
}

func (f *fields) get(name string) (interface{}, bool) {
	if f.err != nil {
		return nil, false
	}
	v, ok := f.values[name]
	if !ok {
		f.err = fmt.Errorf("missing field %s", name)
	}
	return v, ok
}

func (f *fields) address(name string) string {
	v, ok := f.get(name)
	if !ok {
		return ""
	}
	addr, err := asAddress(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
		return ""
	}
	return addr.Hex()
}

func (f *fields) bigInt(name string) *big.Int {
	v, ok := f.get(name)
	if !ok {
		return nil
	}
	n, err := asBigInt(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
		return nil
	}
	return n
}

func (f *fields) int24(name string) int32 {
	n := f.bigInt(name)
	if n == nil {
		return 0
	}
	tick, err := int24FromBig(n)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
		return 0
	}
	return tick
}
