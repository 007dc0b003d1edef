package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore is the canonical trace store: one JSON record per line in an
// append-only file. A mutex serializes appends so each record lands as a
// single contiguous write.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the store, ensuring the parent directory exists.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	return &JSONLStore{path: path}, nil
}

// Save appends one record as a single line.
func (s *JSONLStore) Save(record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode trace record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append trace record: %w", err)
	}
	return nil
}

// Get returns the first record matching runID in file order.
func (s *JSONLStore) Get(runID string) (*Record, error) {
	records, err := s.ListAll(0)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.RunID == runID {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// ListByPlan filters records by plan id preserving append order.
func (s *JSONLStore) ListByPlan(planID string, limit int) ([]*Record, error) {
	records, err := s.ListAll(0)
	if err != nil {
		return nil, err
	}
	var matched []*Record
	for _, rec := range records {
		if rec.PlanID == planID {
			matched = append(matched, rec)
		}
	}
	return tail(matched, limit), nil
}

// ListAll reads every record in append order. A missing file is an empty
// store, not an error.
func (s *JSONLStore) ListAll(limit int) ([]*Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open trace log: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := &Record{}
		if err := json.Unmarshal(line, rec); err != nil {
			return nil, fmt.Errorf("failed to decode trace record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace log: %w", err)
	}
	return tail(records, limit), nil
}

// Stats aggregates over all records or only those for planID.
func (s *JSONLStore) Stats(planID string) (*Stats, error) {
	var (
		records []*Record
		err     error
	)
	if planID != "" {
		records, err = s.ListByPlan(planID, 0)
	} else {
		records, err = s.ListAll(0)
	}
	if err != nil {
		return nil, err
	}
	return computeStats(records, planID), nil
}

// Close is a no-op; the file handle is opened per append.
func (s *JSONLStore) Close() error { return nil }
