package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func indexJSON(t *testing.T, entries map[string]Entry) []byte {
	t.Helper()
	data, err := json.Marshal(&Index{Entries: entries})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func staticFetch(data []byte) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return data, nil
	}
}

func failingFetch(err error) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return nil, err
	}
}

func newTestCache(fetch FetchFunc, opts ...Option) *Cache {
	all := append([]Option{WithFetch(fetch)}, opts...)
	return NewCache("http://unused.invalid/index.json", time.Second, 0, all...)
}

func TestLoad_Success(t *testing.T) {
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	c := newTestCache(staticFetch(data))

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsKnownTypesPackage("left-pad") {
		t.Error("left-pad should be known after load")
	}
	if c.IsKnownTypesPackage("lodash") {
		t.Error("lodash is not in the index")
	}
}

func TestLoad_FailureLeavesLookupsUnknown(t *testing.T) {
	c := newTestCache(failingFetch(fmt.Errorf("network down")))

	err := c.Load(context.Background())
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
	if c.IsKnownTypesPackage("left-pad") {
		t.Error("lookups must answer unknown after a failed load")
	}
}

func TestLoad_RecoversAfterFailure(t *testing.T) {
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	var fail atomic.Bool
	fail.Store(true)
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		if fail.Load() {
			return nil, fmt.Errorf("network down")
		}
		return data, nil
	})

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("first load should fail")
	}
	if c.IsKnownTypesPackage("left-pad") {
		t.Error("name must stay unknown until a successful load")
	}

	fail.Store(false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("second load should succeed: %v", err)
	}
	if !c.IsKnownTypesPackage("left-pad") {
		t.Error("left-pad should be known after recovery")
	}
}

func TestLoad_ConcurrentCallsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	release := make(chan struct{})
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		<-release
		return data, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Load(context.Background())
		}()
	}

	// Give the goroutines a moment to pile onto the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("expected exactly one fetch, got %d", got)
	}
}

func TestIsKnownTypesPackage_NeverTrueForInvalidName(t *testing.T) {
	// Even an index that (incorrectly) lists an invalid name must not leak
	// through the validity gate.
	data := indexJSON(t, map[string]Entry{"///not-a-name": {Latest: "1.0.0"}})
	c := newTestCache(staticFetch(data))
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if c.IsKnownTypesPackage("///not-a-name") {
		t.Error("invalid names must never be known")
	}
}

func TestIsKnownTypesPackage_TriggersBackgroundLoad(t *testing.T) {
	loaded := make(chan struct{})
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		defer close(loaded)
		return data, nil
	})

	// First lookup answers conservatively and kicks off the load.
	if c.IsKnownTypesPackage("left-pad") {
		t.Error("lookup before load must answer false")
	}

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("background load never started")
	}

	// The load installs the index asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for !c.IsKnownTypesPackage("left-pad") {
		if time.Now().After(deadline) {
			t.Fatal("index never became visible after background load")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInvalidate_DropsIndexAndRetriggersLoad(t *testing.T) {
	var fetches atomic.Int32
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return data, nil
	})

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()

	if c.Loaded() {
		t.Error("index should be dropped after Invalidate")
	}

	// Next lookup answers false and retriggers a load.
	if c.IsKnownTypesPackage("left-pad") {
		t.Error("lookup right after Invalidate must answer false")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !c.IsKnownTypesPackage("left-pad") {
		if time.Now().After(deadline) {
			t.Fatal("index never reloaded after Invalidate")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if fetches.Load() < 2 {
		t.Errorf("expected a refetch after Invalidate, got %d fetches", fetches.Load())
	}
}

func TestInvalidate_ForcesRefetchPastFreshSnapshot(t *testing.T) {
	// A fresh snapshot that predates brand-new-pkg.
	path := filepath.Join(t.TempDir(), "registry-index.json")
	if err := saveSnapshot(path, &Index{Entries: map[string]Entry{"left-pad": {Latest: "1.3.0"}}}); err != nil {
		t.Fatal(err)
	}

	var fetches atomic.Int32
	fresh := indexJSON(t, map[string]Entry{
		"left-pad":      {Latest: "1.3.0"},
		"brand-new-pkg": {Latest: "1.0.0"},
	})
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return fresh, nil
	}, WithSnapshotPath(path))

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetches.Load() != 0 {
		t.Fatal("first load should come from the fresh snapshot")
	}

	c.Invalidate()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("reload after Invalidate failed: %v", err)
	}
	if fetches.Load() != 1 {
		t.Errorf("reload after Invalidate must hit the network, got %d fetches", fetches.Load())
	}
	if !c.IsKnownTypesPackage("brand-new-pkg") {
		t.Error("reload after Invalidate should serve the refetched index, not the snapshot")
	}
}

func TestInvalidate_StaleSnapshotStillRescuesFailedRefetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry-index.json")
	if err := saveSnapshot(path, &Index{Entries: map[string]Entry{"left-pad": {Latest: "1.3.0"}}}); err != nil {
		t.Fatal(err)
	}

	c := newTestCache(failingFetch(fmt.Errorf("network down")), WithSnapshotPath(path))

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("snapshot should rescue a forced refetch that fails: %v", err)
	}
	if !c.IsKnownTypesPackage("left-pad") {
		t.Error("snapshot contents should answer lookups after the fallback")
	}
}

func TestLoad_SchemaRejection(t *testing.T) {
	// "entries" values must be objects with a "latest" string.
	bad := []byte(`{"entries": {"left-pad": {"latest": 42}}}`)
	c := newTestCache(staticFetch(bad))

	if err := c.Load(context.Background()); !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable for schema-invalid index, got %v", err)
	}
}

func TestLoad_UsesFreshSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry-index.json")
	idx := &Index{Entries: map[string]Entry{"left-pad": {Latest: "1.3.0"}}}
	if err := saveSnapshot(path, idx); err != nil {
		t.Fatal(err)
	}

	var fetches atomic.Int32
	c := newTestCache(func(ctx context.Context) ([]byte, error) {
		fetches.Add(1)
		return nil, fmt.Errorf("should not be called")
	}, WithSnapshotPath(path))

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetches.Load() != 0 {
		t.Error("fresh snapshot should avoid the network")
	}
	if !c.IsKnownTypesPackage("left-pad") {
		t.Error("snapshot contents should answer lookups")
	}
}

func TestLoad_StaleSnapshotFallbackWhenFetchFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry-index.json")
	idx := &Index{Entries: map[string]Entry{"left-pad": {Latest: "1.3.0"}}}
	if err := saveSnapshot(path, idx); err != nil {
		t.Fatal(err)
	}

	c := newTestCache(failingFetch(fmt.Errorf("network down")),
		WithSnapshotPath(path),
		WithSnapshotMaxAge(0)) // force staleness

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("stale snapshot should rescue a failed fetch: %v", err)
	}
	if !c.IsKnownTypesPackage("left-pad") {
		t.Error("stale snapshot contents should answer lookups")
	}
}

func TestLoad_WritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry-index.json")
	data := indexJSON(t, map[string]Entry{"left-pad": {Latest: "1.3.0"}})
	c := newTestCache(staticFetch(data), WithSnapshotPath(path))

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap, err := loadSnapshot(path)
	if err != nil || snap == nil {
		t.Fatalf("snapshot should have been written: %v", err)
	}
	if !snap.Index.Has("left-pad") {
		t.Error("snapshot should carry the fetched index")
	}
}
