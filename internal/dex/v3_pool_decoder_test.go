package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/model"
)

func TestV3PoolDecoderSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	require.NoError(t, err)

	log := buildLogRecord(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})
	require.True(t, decoder.CanDecode(log.Topic0()))

	ev, err := decoder.Decode(log)
	require.NoError(t, err)
	require.Equal(t, model.V3Swap, ev.Name)
	require.Equal(t, pool.Hex(), ev.Pool)
	require.Equal(t, "-1000", ev.Amount0.String())
	require.Equal(t, "2000", ev.Amount1.String())
	require.Equal(t, "123456789", ev.SqrtPriceX96.String())
	require.Equal(t, "987654321", ev.Liquidity.String())
	require.Equal(t, int32(-15), ev.Tick)
	require.Equal(t, sender.Hex(), ev.Sender)
	require.Equal(t, recipient.Hex(), ev.Recipient)
	require.Equal(t, uint64(1700000000), ev.Time)
	require.Equal(t, uint64(12345), ev.Source.BlockNumber)
	require.Equal(t, uint64(1), ev.Source.LogIndex)
}

func TestV3PoolDecoderMintBurnCollect(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	require.NoError(t, err)
	mint, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	}))
	require.NoError(t, err)
	require.Equal(t, model.V3Mint, mint.Name)
	require.Equal(t, int32(-120), mint.TickLower)
	require.Equal(t, int32(120), mint.TickUpper)
	require.Equal(t, "5000", mint.Amount.String())
	require.Equal(t, sender.Hex(), mint.Sender)
	require.Equal(t, owner.Hex(), mint.Owner)

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	require.NoError(t, err)
	burn, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	}))
	require.NoError(t, err)
	require.Equal(t, "7000", burn.Amount.String())
	require.Equal(t, "400", burn.Amount1.String())

	collectData, err := poolABI.Events["Collect"].Inputs.NonIndexed().Pack(
		recipient,
		big.NewInt(900),
		big.NewInt(1000),
	)
	require.NoError(t, err)
	collect, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Collect"].ID, collectData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-10),
		topicFromInt24(10),
	}))
	require.NoError(t, err)
	require.Equal(t, "900", collect.Amount0.String())
	require.Equal(t, "1000", collect.Amount1.String())
	require.Equal(t, recipient.Hex(), collect.Recipient)
	require.Equal(t, int32(-10), collect.TickLower)
}

func TestV3PoolDecoderRejectsMalformedLogs(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")

	// One indexed topic short.
	log := buildLogRecord(pool, poolABI.Events["Swap"].ID, nil, []common.Hash{topicFromAddress(pool)})
	_, err = decoder.Decode(log)
	require.Error(t, err)

	unknown := buildLogRecord(pool, common.HexToHash("0x01"), nil, nil)
	require.False(t, decoder.CanDecode(unknown.Topic0()))
	_, err = decoder.Decode(unknown)
	require.Error(t, err)
}

func TestV3PoolDecoderTopicOverrides(t *testing.T) {
	alias := "0x00000000000000000000000000000000000000000000000000000000000000aa"
	decoder, err := NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "swap"}})
	require.NoError(t, err)
	require.True(t, decoder.CanDecode(alias))
	require.Len(t, decoder.Topics(), 5)

	_, err = NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "Flash"}})
	require.Error(t, err)
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
