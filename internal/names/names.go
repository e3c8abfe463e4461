// Package names maintains names.json, a flat map from user_id to a
// human-readable display name, read and written through
// Engine.DisplayName and Engine.SetDisplayName. Engine.Profile does not
// consult it.
package names

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Directory is a file-backed map of user_id to display name.
type Directory struct {
	path string
	mu   sync.Mutex
	m    map[string]string
}

// Open loads names.json from dir, starting from an empty map if the file
// does not yet exist.
func Open(dir string) (*Directory, error) {
	path := filepath.Join(dir, "names.json")
	d := &Directory{path: path, m: map[string]string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("names: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, &d.m); err != nil {
		return nil, fmt.Errorf("names: parse %s: %w", path, err)
	}
	return d, nil
}

// Get returns the display name for userID, or "" if none is set. An absent
// entry is never an error.
func (d *Directory) Get(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m[userID]
}

// Set records displayName for userID and atomically rewrites names.json.
func (d *Directory) Set(userID, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.m[userID] = displayName
	return d.writeLocked()
}

func (d *Directory) writeLocked() error {
	data, err := json.MarshalIndent(d.m, "", "  ")
	if err != nil {
		return fmt.Errorf("names: marshal: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".names-*.tmp")
	if err != nil {
		return fmt.Errorf("names: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("names: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("names: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("names: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("names: rename into place: %w", err)
	}
	return nil
}
