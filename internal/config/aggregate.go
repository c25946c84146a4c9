package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	RPCURL        string
	Input         string `validate:"required"`
	Window        time.Duration
	PGDSN         string `validate:"required"`
	BatchSize     int    `validate:"min=1"`
	StateFile     string
	StateName     string
	RecomputeFrom uint64
	Decimals      map[string]uint8
	LogLevel      string `validate:"oneof=debug info warn error"`
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
		"window":     5 * time.Minute,
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	recompute, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("recompute-from: %w", err)
	}
	decimals, err := getUint8Map(v, "decimals")
	if err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Window:        v.GetDuration("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		StateName:     v.GetString("state-name"),
		RecomputeFrom: recompute,
		Decimals:      decimals,
		LogLevel:      v.GetString("log-level"),
	}
	if err := check(cfg); err != nil {
		return cfg, err
	}
	if cfg.Window < time.Second || cfg.Window%time.Second != 0 {
		return cfg, fmt.Errorf("invalid config: window %s must be whole seconds", cfg.Window)
	}
	if cfg.StateName == "" {
		cfg.StateName = cfg.Input
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
