package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/cachedir"
	"github.com/typedock-labs/typedock/internal/client"
	"github.com/typedock-labs/typedock/internal/config"
	"github.com/typedock-labs/typedock/internal/coordinator"
	"github.com/typedock-labs/typedock/internal/installer"
	"github.com/typedock-labs/typedock/internal/registry"
	"github.com/typedock-labs/typedock/internal/resolver"
)

// engine bundles the wired acquisition pipeline for one-shot CLI runs.
type engine struct {
	cache     *registry.Cache
	coord     *coordinator.Coordinator
	client    *client.Client
	cacheRoot string
}

// buildEngine wires the full pipeline, from the registry cache through the
// resolver, worker and coordinator to the client, all targeting the shared
// cache root.
func buildEngine(log *zap.Logger) (*engine, error) {
	cacheRoot, err := cachedir.CacheRoot()
	if err != nil {
		return nil, fmt.Errorf("resolving cache root: %w", err)
	}
	snapshotPath, err := cachedir.SnapshotPath()
	if err != nil {
		return nil, fmt.Errorf("resolving snapshot path: %w", err)
	}

	cache := registry.NewCache(config.IndexURL(), config.HTTPTimeout(), config.HTTPRetryMax(),
		registry.WithSnapshotPath(snapshotPath),
		registry.WithSnapshotMaxAge(config.IndexTTL()),
		registry.WithLogger(log))

	res := resolver.New(cache, cacheRoot, log)
	fetcher := installer.NewHTTPFetcher(config.BaseURL(), config.HTTPTimeout(), config.HTTPRetryMax())
	worker := installer.NewWorker(fetcher, log)
	coord := coordinator.New(res, worker, log)
	cl := client.New(cache, coord, cacheRoot, log)

	return &engine{cache: cache, coord: coord, client: cl, cacheRoot: cacheRoot}, nil
}
