package registry

import "time"

// Entry describes one declaration package known to the registry index.
type Entry struct {
	Latest   string   `json:"latest"`             // newest published version tag
	Versions []string `json:"versions,omitempty"` // all published versions, oldest first
}

// Index maps declaration-package names to their registry metadata. An Index
// is immutable once installed in the cache; invalidation replaces it
// wholesale rather than mutating in place.
type Index struct {
	Entries     map[string]Entry `json:"entries"`
	GeneratedAt time.Time        `json:"generated_at,omitempty"`
}

// Has reports whether the index knows the package name.
func (idx *Index) Has(name string) bool {
	_, ok := idx.Entries[name]
	return ok
}

// Len returns the number of known packages.
func (idx *Index) Len() int {
	return len(idx.Entries)
}
