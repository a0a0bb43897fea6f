package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the manifest file name at a cache or project root.
const FileName = "package.json"

// Manifest models the subset of package.json fields the acquisition engine
// reads and writes. Unknown fields are not preserved; the cache-root manifest
// is owned exclusively by this engine.
type Manifest struct {
	Name         string            `json:"name,omitempty"`
	Version      string            `json:"version,omitempty"`
	Private      bool              `json:"private,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// PathIn returns the manifest path for a root directory.
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// ExistsIn reports whether a manifest file exists at the root directory.
func ExistsIn(dir string) bool {
	_, err := os.Stat(PathIn(dir))
	return err == nil
}

// Read parses the manifest at the root directory.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(PathIn(dir))
	if err != nil {
		return nil, fmt.Errorf("reading manifest in %s: %w", dir, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest in %s: %w", dir, err)
	}
	return &m, nil
}

// Write serializes the manifest to the root directory, creating the
// directory if needed.
func Write(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(PathIn(dir), data, 0644); err != nil {
		return fmt.Errorf("writing manifest in %s: %w", dir, err)
	}
	return nil
}

// EnsureAt guarantees a manifest exists at the root directory, writing the
// minimal private default when absent. Returns the manifest now on disk.
func EnsureAt(dir string) (*Manifest, error) {
	if ExistsIn(dir) {
		return Read(dir)
	}
	m := &Manifest{Private: true}
	if err := Write(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddDependencies merges resolved package versions into the manifest,
// overwriting any previous entry for the same name.
func (m *Manifest) AddDependencies(resolved map[string]string) {
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]string, len(resolved))
	}
	for name, version := range resolved {
		m.Dependencies[name] = version
	}
}

// HasDependency reports whether the manifest already records the package.
func (m *Manifest) HasDependency(name string) bool {
	_, ok := m.Dependencies[name]
	return ok
}
