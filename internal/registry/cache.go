package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/typedock-labs/typedock/internal/names"
)

// ErrRegistryUnavailable reports that the index could not be obtained from
// the network or a disk snapshot. Lookups degrade to "unknown" until a
// subsequent successful load.
var ErrRegistryUnavailable = errors.New("registry index unavailable")

// DefaultSnapshotMaxAge is how long a disk snapshot stays fresh.
const DefaultSnapshotMaxAge = 24 * time.Hour

// Cache loads and holds the registry index. The index is read-shared and
// replaced wholesale on invalidation; readers holding the previous snapshot
// keep a consistent view during a reload.
type Cache struct {
	fetch        FetchFunc
	snapshotPath string
	maxAge       time.Duration
	log          *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	idx       *Index
	attempted bool // a load has been started at least once since the last Invalidate
	force     bool // next load must refetch even when the disk snapshot is fresh
	lastErr   error
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetch overrides the index fetch function (useful for testing).
func WithFetch(fetch FetchFunc) Option {
	return func(c *Cache) { c.fetch = fetch }
}

// WithSnapshotPath sets where the fetched index is persisted between runs.
// Empty disables persistence.
func WithSnapshotPath(path string) Option {
	return func(c *Cache) { c.snapshotPath = path }
}

// WithSnapshotMaxAge sets how long a disk snapshot is considered fresh.
func WithSnapshotMaxAge(maxAge time.Duration) Option {
	return func(c *Cache) { c.maxAge = maxAge }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// NewCache creates a Cache that fetches the index from indexURL.
func NewCache(indexURL string, httpTimeout time.Duration, retryMax int, opts ...Option) *Cache {
	c := &Cache{
		fetch:  newHTTPFetch(indexURL, httpTimeout, retryMax),
		maxAge: DefaultSnapshotMaxAge,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load obtains the registry index once. Concurrent calls while a load is in
// flight share the same pending result rather than re-fetching. On failure
// the cache stays empty and lookups answer "unknown".
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	c.attempted = true
	c.mu.Unlock()

	_, err, _ := c.group.Do("load", func() (interface{}, error) {
		return nil, c.doLoad(ctx)
	})
	return err
}

func (c *Cache) doLoad(ctx context.Context) error {
	c.mu.RLock()
	force := c.force
	c.mu.RUnlock()

	// A fresh disk snapshot avoids the network round trip entirely, unless
	// an Invalidate demanded fresh data.
	snap := c.readSnapshot()
	if !force && snap != nil && !snap.stale(c.maxAge) {
		c.install(snap.Index)
		c.log.Debug("registry index loaded from snapshot",
			zap.Int("packages", snap.Index.Len()))
		return nil
	}

	idx, err := c.fetchIndex(ctx)
	if err != nil {
		// A stale snapshot still beats answering "unknown" for everything.
		if snap != nil {
			c.install(snap.Index)
			c.log.Warn("registry fetch failed, using stale snapshot",
				zap.Error(err),
				zap.Time("fetched_at", snap.FetchedAt))
			return nil
		}
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.log.Warn("registry index unavailable", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	c.install(idx)
	c.log.Info("registry index loaded", zap.Int("packages", idx.Len()))

	// Persist for the next process. Best effort.
	if c.snapshotPath != "" {
		if err := saveSnapshot(c.snapshotPath, idx); err != nil {
			c.log.Warn("saving index snapshot failed", zap.Error(err))
		}
	}
	return nil
}

func (c *Cache) fetchIndex(ctx context.Context) (*Index, error) {
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	issues, err := ValidateIndex(data)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, fmt.Errorf("index failed schema validation at %s: %s",
			issues[0].Path, issues[0].Message)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return &idx, nil
}

func (c *Cache) readSnapshot() *snapshotFile {
	if c.snapshotPath == "" {
		return nil
	}
	snap, err := loadSnapshot(c.snapshotPath)
	if err != nil {
		c.log.Warn("reading index snapshot failed", zap.Error(err))
		return nil
	}
	return snap
}

func (c *Cache) install(idx *Index) {
	c.mu.Lock()
	c.idx = idx
	c.force = false
	c.lastErr = nil
	c.mu.Unlock()
}

// IsKnownTypesPackage reports whether name passes validation and appears in
// the loaded index. It never blocks: before the index has finished loading
// it answers false, and the first use triggers a background Load.
func (c *Cache) IsKnownTypesPackage(name string) bool {
	if !names.IsValid(name) {
		return false
	}

	c.mu.RLock()
	idx := c.idx
	attempted := c.attempted
	c.mu.RUnlock()

	if idx == nil {
		if !attempted {
			c.triggerBackgroundLoad()
		}
		return false
	}
	return idx.Has(name)
}

func (c *Cache) triggerBackgroundLoad() {
	c.mu.Lock()
	if c.attempted {
		c.mu.Unlock()
		return
	}
	c.attempted = true
	c.mu.Unlock()

	go func() {
		_ = c.Load(context.Background())
	}()
}

// Entry returns the index metadata for a package name. ok is false when the
// index is not loaded or the name is unknown.
func (c *Cache) Entry(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.idx == nil {
		return Entry{}, false
	}
	e, ok := c.idx.Entries[name]
	return e, ok
}

// Loaded reports whether an index is currently installed.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx != nil
}

// Index returns the currently installed index, or nil before a successful
// load. Callers must treat the returned value as immutable.
func (c *Cache) Index() *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx
}

// Invalidate drops the cached index. The next lookup retriggers Load, and
// that load refetches from the network even when the disk snapshot is still
// fresh; a stale snapshot remains the fallback when the fetch fails.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.idx = nil
	c.attempted = false
	c.force = true
	c.lastErr = nil
	c.mu.Unlock()
	c.log.Debug("registry index invalidated")
}
