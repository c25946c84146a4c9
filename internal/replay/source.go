package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/sim"
)

// ReadLogFile loads an indexer JSONL export.
func ReadLogFile(path string) ([]model.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open logs: %w", err)
	}
	defer f.Close()

	var out []model.LogRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec model.LogRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	return out, nil
}

// LogFetcher is the node access RPCSource needs. *chain.Client satisfies it.
type LogFetcher interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RPCSource pulls a pool's logs straight from a node.
type RPCSource struct {
	Fetcher      LogFetcher
	Pool         common.Address
	Topics       []common.Hash
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Fetch walks [FromBlock, ToBlock] in batches. A zero ToBlock means the
// current head. Logs seen twice across batches are dropped.
func (s *RPCSource) Fetch(ctx context.Context) ([]model.LogRecord, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	chainID, err := s.Fetcher.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	to := s.ToBlock
	if to == 0 {
		if to, err = s.Fetcher.LatestBlockNumber(ctx); err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
	}
	spans, err := sim.SplitRange(s.FromBlock, to, s.BatchSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []model.LogRecord
	for _, span := range spans {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var logs []types.Log
		err := withRetry(ctx, logger, "filter logs", s.MaxRetries, s.RetryBackoff, func(ctx context.Context) error {
			var err error
			logs, err = s.Fetcher.FilterLogs(ctx, span.From, span.To, []common.Address{s.Pool}, s.Topics)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", span.From, span.To, err)
		}

		for _, log := range logs {
			id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			var ts uint64
			err := withRetry(ctx, logger, "block timestamp", s.MaxRetries, s.RetryBackoff, func(ctx context.Context) error {
				var err error
				ts, err = s.Fetcher.BlockTimestamp(ctx, log.BlockNumber)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			out = append(out, logRecord(chainID, log, ts))
		}
		logger.Info("fetched logs", zap.Uint64("from", span.From), zap.Uint64("to", span.To), zap.Int("logs", len(logs)))
	}
	return out, nil
}

func logRecord(chainID uint64, log types.Log, timestamp uint64) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
	}
}

// poolLogs keeps the live logs of pool in chain order.
func poolLogs(logs []model.LogRecord, pool common.Address) []model.LogRecord {
	out := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed || !common.IsHexAddress(log.Address) || common.HexToAddress(log.Address) != pool {
			continue
		}
		out = append(out, log)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
