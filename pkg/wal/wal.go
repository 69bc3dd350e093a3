package wal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// RecordType identifies a write-ahead log record.
type RecordType string

const (
	RecordCreateCollection RecordType = "create_collection"
	RecordDropCollection   RecordType = "drop_collection"
	RecordUpsert           RecordType = "upsert"
	RecordDeletePoints     RecordType = "delete_points"
)

// Point 日志里的一个点
type Point struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	PayloadJSON string    `json:"payload_json,omitempty"`
}

// Record is one WAL entry. Which fields are set depends on Type.
type Record struct {
	Type       RecordType `json:"type"`
	Collection string     `json:"collection"`
	Dims       int        `json:"dims,omitempty"`
	Metric     string     `json:"metric,omitempty"`
	Points     []Point    `json:"points,omitempty"`
	IDs        []string   `json:"ids,omitempty"`
	TsMs       int64      `json:"ts_ms"`
}

// WAL is an append-only JSON-lines log: one record per line, synced to disk
// on every append. Appends are serialized by a mutex.
type WAL struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates the log file (and parent directories) if needed and opens it
// for appending.
func Open(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create wal directory")
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open wal file")
	}

	return &WAL{path: path, file: file}, nil
}

// Path returns the log file path.
func (w *WAL) Path() string {
	return w.path
}

// Append writes one record and syncs it to disk.
func (w *WAL) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode wal record")
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(data); err != nil {
		return errors.Wrap(err, "append wal record")
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "sync wal")
	}
	return nil
}

// Replay reads the log from the start and calls apply for each record. Blank
// lines are skipped; the first undecodable line aborts the replay with an
// error, leaving whatever apply already handled in place.
func (w *WAL) Replay(apply func(Record) error) error {
	file, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open wal for replay")
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return errors.Wrapf(err, "decode wal record at line %d", line)
		}
		if err := apply(rec); err != nil {
			return errors.Wrapf(err, "apply wal record at line %d", line)
		}
	}
	return errors.Wrap(scanner.Err(), "read wal")
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
