package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityEngine/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Path is the file the storage appends to.
func (s *JsonlStorage) Path() string {
	return s.path
}

// PutEventBatch appends a batch of event records as JSON lines.
func (s *JsonlStorage) PutEventBatch(records []model.EventRecord) error {
	return appendLines(s, records)
}

// PutOpErrors appends failed ops as JSON lines.
func (s *JsonlStorage) PutOpErrors(errs []model.OpError) error {
	return appendLines(s, errs)
}

// Truncate empties the file, creating it if needed.
func (s *JsonlStorage) Truncate() error {
	if err := ensureDir(s.path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate output file: %w", err)
	}
	return nil
}

func appendLines[T any](s *JsonlStorage, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := ensureDir(s.path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, record := range records {
		// Encode terminates every value with a newline.
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write %T: %w", record, err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
