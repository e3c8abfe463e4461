// Package ledger tracks per-provider call counts and an approximate dollar
// cost accumulator across the lifetime of a data directory, persisted to
// ledger.json. It is advisory: the vendor adapters discard the error from
// Record, so a write failure never fails the operation that triggered it.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Entry is one provider's running totals.
type Entry struct {
	Calls int64   `json:"calls"`
	CostUSD float64 `json:"cost_usd"`
}

// Ledger is a file-backed, process-safe map of provider name to Entry.
type Ledger struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock

	entries map[string]Entry
}

// Open loads ledger.json from dir, creating an empty ledger if the file
// does not yet exist.
func Open(dir string) (*Ledger, error) {
	path := filepath.Join(dir, "ledger.json")
	l := &Ledger{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: map[string]Entry{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	return l, nil
}

// Record adds calls and costUSD to provider's running totals and persists
// the result.
func (l *Ledger) Record(provider string, calls int64, costUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("ledger: acquire file lock: %w", err)
	}
	defer l.lock.Unlock()

	e := l.entries[provider]
	e.Calls += calls
	e.CostUSD += costUSD
	l.entries[provider] = e

	return l.writeLocked()
}

// Snapshot returns a copy of the current per-provider totals.
func (l *Ledger) Snapshot() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Entry, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// writeLocked atomically rewrites ledger.json: write to a temp file in the
// same directory, fsync, then rename over the target.
func (l *Ledger) writeLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("ledger: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ledger: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("ledger: rename into place: %w", err)
	}
	return nil
}
