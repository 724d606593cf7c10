package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonlJournal writes journal entries to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

type entry struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

func (j *JsonlJournal) PutQuote(_ context.Context, rec QuoteRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return AppendJSONL(j.path, entry{Kind: "quote", Data: rec})
}

func (j *JsonlJournal) PutSubmission(_ context.Context, rec SubmissionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return AppendJSONL(j.path, entry{Kind: "submission", Data: rec})
}

// AppendJSONL appends records as JSON lines to path, creating the directory
// when needed. Callers serialize concurrent writes to the same path.
func AppendJSONL(path string, records ...interface{}) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// Multi fans entries out to several journals and returns the first error.
type Multi []Journal

func (m Multi) PutQuote(ctx context.Context, rec QuoteRecord) error {
	for _, j := range m {
		if err := j.PutQuote(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutSubmission(ctx context.Context, rec SubmissionRecord) error {
	for _, j := range m {
		if err := j.PutSubmission(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
