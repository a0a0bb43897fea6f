package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/cachedir"
	"github.com/typedock-labs/typedock/internal/manifest"
	"github.com/typedock-labs/typedock/internal/resolver"
)

// Outcome reports the result of executing one install plan. Every internal
// failure is converted into a failed Outcome; Execute never panics past its
// boundary.
type Outcome struct {
	RequestID uint64
	Success   bool
	Reason    string   // failure reason, empty on success
	Installed []string // package names materialized by this execution
	Typings   []string // absolute paths to installed declaration directories
}

// Worker executes install plans against a cache root. The coordinator
// guarantees at most one Execute per cache root at a time; the worker relies
// on that for exclusive ownership of the manifest and package tree.
type Worker struct {
	fetcher Fetcher
	log     *zap.Logger
}

// NewWorker creates a Worker that fetches artifacts through the fetcher.
func NewWorker(fetcher Fetcher, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{fetcher: fetcher, log: log}
}

// closureItem is one package in the resolved dependency closure.
type closureItem struct {
	name    string
	version string
	tarball string
}

// Execute resolves the plan's dependency closure, fetches and extracts every
// artifact into a staging area, then restores the closure into the cache
// root. Consumers observe either the pre-install or the fully-post-install
// state: nothing is renamed into place until every artifact has landed in
// staging, and a failure removes the staging area without touching the
// manifest.
func (w *Worker) Execute(ctx context.Context, plan *resolver.InstallPlan) Outcome {
	out, err := w.restore(ctx, plan)
	if err != nil {
		w.log.Warn("install failed",
			zap.Uint64("request_id", plan.RequestID),
			zap.Error(err))
		return Outcome{RequestID: plan.RequestID, Reason: err.Error()}
	}
	return *out
}

func (w *Worker) restore(ctx context.Context, plan *resolver.InstallPlan) (*Outcome, error) {
	root := plan.CacheRoot
	if err := cachedir.EnsureCacheRoot(root); err != nil {
		return nil, err
	}
	man, err := manifest.EnsureAt(root)
	if err != nil {
		return nil, err
	}

	closure, err := w.resolveClosure(ctx, plan, man)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RequestID: plan.RequestID, Success: true}
	if len(closure) == 0 {
		// Everything requested is already materialized.
		for _, pkg := range plan.Packages {
			out.Typings = append(out.Typings, cachedir.PackageDir(root, pkg.Name))
		}
		return out, nil
	}

	staging := filepath.Join(cachedir.StagingRoot(root), fmt.Sprintf("install-%d", plan.RequestID))
	defer os.RemoveAll(staging)

	// Stage every artifact before any of them becomes visible.
	for _, item := range closure {
		if err := w.stage(ctx, item, staging); err != nil {
			return nil, err
		}
	}

	// Point of no return: move staged packages into the visible tree.
	resolved := make(map[string]string, len(closure))
	for _, item := range closure {
		if err := finalize(staging, root, item.name); err != nil {
			return nil, err
		}
		resolved[item.name] = item.version
		out.Installed = append(out.Installed, item.name)
		w.log.Info("package installed",
			zap.String("name", item.name),
			zap.String("version", item.version),
			zap.Uint64("request_id", plan.RequestID))
	}

	man.AddDependencies(resolved)
	if err := manifest.Write(root, man); err != nil {
		return nil, err
	}

	for _, pkg := range plan.Packages {
		out.Typings = append(out.Typings, cachedir.PackageDir(root, pkg.Name))
	}
	return out, nil
}

// resolveClosure walks the dependency graph of the plan's packages against
// the registry, skipping packages the cache-root manifest already records.
func (w *Worker) resolveClosure(ctx context.Context, plan *resolver.InstallPlan, man *manifest.Manifest) ([]closureItem, error) {
	type want struct {
		name  string
		spec  string // exact version for plan roots, range for transitive deps
		exact bool
	}

	queue := make([]want, 0, len(plan.Packages))
	for _, pkg := range plan.Packages {
		queue = append(queue, want{name: pkg.Name, spec: pkg.Version, exact: true})
	}

	visited := make(map[string]bool)
	var closure []closureItem

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if visited[next.name] {
			continue
		}
		visited[next.name] = true

		// Already materialized by an earlier request.
		if man.HasDependency(next.name) && dirExists(cachedir.PackageDir(plan.CacheRoot, next.name)) {
			continue
		}

		p, err := w.fetcher.Packument(ctx, next.name)
		if err != nil {
			return nil, err
		}
		meta, err := selectVersion(p, next.spec, next.exact)
		if err != nil {
			return nil, err
		}
		if meta.Dist.Tarball == "" {
			return nil, fmt.Errorf("version %s of %s has no tarball", meta.Version, next.name)
		}

		closure = append(closure, closureItem{
			name:    next.name,
			version: meta.Version,
			tarball: meta.Dist.Tarball,
		})
		for dep, rng := range meta.Dependencies {
			queue = append(queue, want{name: dep, spec: rng})
		}
	}

	return closure, nil
}

// selectVersion picks the concrete version metadata to install: the exact
// version for plan roots, the highest published version satisfying the range
// for transitive dependencies, with the latest dist-tag as fallback.
func selectVersion(p *Packument, spec string, exact bool) (*VersionMeta, error) {
	if exact {
		if meta, ok := p.Versions[spec]; ok {
			return &meta, nil
		}
		return nil, fmt.Errorf("version %s of %s not published", spec, p.Name)
	}

	if c, err := semver.NewConstraint(spec); err == nil {
		var best *semver.Version
		for raw := range p.Versions {
			v, err := semver.NewVersion(raw)
			if err != nil || !c.Check(v) {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
			}
		}
		if best != nil {
			meta := p.Versions[best.Original()]
			return &meta, nil
		}
	}

	// Range unparsable or nothing matched: fall back to the latest tag.
	if latest, ok := p.DistTags["latest"]; ok {
		if meta, ok := p.Versions[latest]; ok {
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("no version of %s satisfies %q", p.Name, spec)
}

// stage downloads and extracts one package under the staging directory.
func (w *Worker) stage(ctx context.Context, item closureItem, staging string) error {
	rc, err := w.fetcher.Tarball(ctx, item.tarball)
	if err != nil {
		return err
	}
	defer rc.Close()

	dest := filepath.Join(staging, filepath.FromSlash(item.name))
	if err := extractTarGz(rc, dest); err != nil {
		return fmt.Errorf("extracting %s@%s: %w", item.name, item.version, err)
	}
	return nil
}

// finalize moves a staged package into the visible package tree.
func finalize(staging, cacheRoot, name string) error {
	src := filepath.Join(staging, filepath.FromSlash(name))
	dst := cachedir.PackageDir(cacheRoot, name)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", dst, err)
	}
	// Remove any previous installation so the rename lands clean.
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("removing existing installation at %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s into place: %w", name, err)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
