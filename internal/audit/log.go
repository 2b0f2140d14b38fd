// Package audit persists gate decisions as a hash-chained JSONL file.
// Every line carries the SHA-256 of the line before it, so removing,
// editing, or inserting an entry breaks the chain at a verifiable point.
// Appends are best-effort from the caller's perspective: a full disk must
// never change a decision, only lose its trail.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash anchors the chain: the first entry of a log points here.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ChainHash fingerprints one serialized entry line for chaining.
func ChainHash(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Log is an append-only decision log. One writer per file; Record
// serializes appends internally so the chain order matches file order.
type Log struct {
	mu   sync.Mutex
	path string
	out  *os.File
	tail string // hash of the last line written
}

// Open appends to the log at path, creating it (and its directory) when
// absent. An existing log is scanned once to recover the chain tail, so a
// restarted gate extends the chain instead of restarting it.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	tail, err := chainTail(path)
	if err != nil {
		return nil, err
	}

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	return &Log{path: path, out: out, tail: tail}, nil
}

// chainTail returns the hash of the last line of the file at path, or the
// genesis hash when the file is missing or empty.
func chainTail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	var last []byte
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		last = append(last[:0], sc.Bytes()...)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("audit: scan existing log: %w", err)
	}
	if len(last) == 0 {
		return GenesisHash, nil
	}
	return ChainHash(last), nil
}

// Record chains and appends one entry. The entry's PrevHash is always
// overwritten with the current tail; a missing timestamp is stamped now.
// The line is synced before Record returns so the chain on disk never
// trails the in-memory tail.
func (l *Log) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	e.PrevHash = l.tail

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	if err := l.out.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.tail = ChainHash(line)
	return nil
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Close closes the underlying file. The log must not be used afterwards.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
