package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotFile is the on-disk form of a fetched registry index, kept so the
// engine can start answering lookups without a network round trip.
type snapshotFile struct {
	Index     *Index    `json:"index"`
	FetchedAt time.Time `json:"fetched_at"`
}

// loadSnapshot reads the index snapshot from disk.
// Returns nil, nil if the snapshot file does not exist (first run).
func loadSnapshot(path string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing index snapshot: %w", err)
	}
	if snap.Index == nil {
		return nil, fmt.Errorf("index snapshot %s has no index", path)
	}
	return &snap, nil
}

// saveSnapshot writes the index snapshot to disk. Best effort; the cache
// works without persistence.
func saveSnapshot(path string, idx *Index) error {
	snap := snapshotFile{Index: idx, FetchedAt: time.Now()}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing index snapshot: %w", err)
	}
	return nil
}

// stale returns true if the snapshot is older than maxAge or nil.
func (s *snapshotFile) stale(maxAge time.Duration) bool {
	if s == nil {
		return true
	}
	return time.Since(s.FetchedAt) > maxAge
}
