package sim

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"liquidityEngine/internal/model"
)

var validate = validator.New()

// Scenario is a parsed op list and the digest of the bytes it came from.
type Scenario struct {
	Ops    []model.Op
	Digest string
}

// LoadScenario reads ops from a YAML file (.yaml, .yml) or JSONL.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	var ops []model.Op
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ops, err = ParseYAML(data)
	default:
		ops, err = ParseJSONL(data)
	}
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{Ops: ops, Digest: Digest(data)}, nil
}

// Digest is the hex blake3 hash of a scenario file.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseJSONL decodes one op per line; blank lines are skipped.
func ParseJSONL(data []byte) ([]model.Op, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []model.Op
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var op model.Op
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := ValidateOp(op); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan scenario: %w", err)
	}
	return ops, nil
}

// ParseYAML accepts either a bare sequence of ops or a mapping with an ops
// key.
func ParseYAML(data []byte) ([]model.Op, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var ops []model.Op
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&ops); err != nil {
			return nil, fmt.Errorf("decode ops: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Ops []model.Op `yaml:"ops"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decode ops: %w", err)
		}
		ops = wrapped.Ops
	default:
		return nil, fmt.Errorf("scenario must be a list of ops or a mapping with ops")
	}

	for i, op := range ops {
		if err := ValidateOp(op); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}
	return ops, nil
}

// ValidateOp checks the shape of an op. Amount syntax is checked when the op
// is applied.
func ValidateOp(op model.Op) error {
	if err := validate.Struct(op); err != nil {
		return err
	}
	if op.Kind == model.OpAdvance {
		return nil
	}
	return validate.Struct(op.Pool)
}
