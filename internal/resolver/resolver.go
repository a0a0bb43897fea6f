package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/manifest"
	"github.com/typedock-labs/typedock/internal/names"
	"github.com/typedock-labs/typedock/internal/registry"
)

// ErrManifestWrite reports that the cache-root manifest could not be created
// or read. It is the only way Plan fails; bad package names never do.
var ErrManifestWrite = errors.New("cache-root manifest unavailable")

// ResolvedPackage is one exact package version chosen for installation.
type ResolvedPackage struct {
	Name    string
	Version string
}

// InstallPlan is the resolved, concrete set of package versions to install
// into the shared cache root for a single request.
type InstallPlan struct {
	RequestID uint64
	Packages  []ResolvedPackage
	CacheRoot string
}

// IndexLookup answers version metadata queries from the registry index.
type IndexLookup interface {
	Entry(name string) (registry.Entry, bool)
}

// Resolver turns requested package names into install plans against the
// shared cache root. Plans are computed without touching package contents;
// only the manifest may be created as a side effect.
type Resolver struct {
	index     IndexLookup
	cacheRoot string
	log       *zap.Logger
}

// New creates a Resolver targeting the given cache root.
func New(index IndexLookup, cacheRoot string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{index: index, cacheRoot: cacheRoot, log: log}
}

// CacheRoot returns the shared cache root all plans target.
func (r *Resolver) CacheRoot() string {
	return r.cacheRoot
}

// Plan computes an install plan for the requested package names. Requests
// may carry a version constraint as "name@constraint". Names failing
// validation and names the registry does not know are dropped silently;
// duplicates collapse to one entry. The plan always targets the shared cache
// root, never projectRoot; acquisition is a global side effect.
func (r *Resolver) Plan(requestID uint64, projectRoot string, packageNames []string) (*InstallPlan, error) {
	// The cache root must carry a manifest before any resolution happens.
	if _, err := manifest.EnsureAt(r.cacheRoot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}

	plan := &InstallPlan{RequestID: requestID, CacheRoot: r.cacheRoot}
	seen := make(map[string]bool, len(packageNames))

	for _, requested := range packageNames {
		name, constraint := splitConstraint(requested)
		if !names.IsValid(name) {
			r.log.Debug("dropping invalid package name",
				zap.String("name", requested),
				zap.String("project", projectRoot))
			continue
		}
		if seen[name] {
			continue
		}

		entry, ok := r.index.Entry(name)
		if !ok {
			r.log.Debug("dropping unknown package name",
				zap.String("name", name),
				zap.String("project", projectRoot))
			continue
		}

		version, ok := pickVersion(entry, constraint)
		if !ok {
			r.log.Debug("no version satisfies constraint",
				zap.String("name", name),
				zap.String("constraint", constraint))
			continue
		}

		seen[name] = true
		plan.Packages = append(plan.Packages, ResolvedPackage{Name: name, Version: version})
	}

	return plan, nil
}

// splitConstraint separates "name@constraint" into its parts. The leading
// "@" of a scoped name is not a separator.
func splitConstraint(requested string) (name, constraint string) {
	i := strings.LastIndex(requested, "@")
	if i <= 0 {
		return requested, ""
	}
	return requested[:i], requested[i+1:]
}

// pickVersion chooses the version to install: the highest published version
// satisfying the constraint, or the latest tag when no constraint is given.
func pickVersion(entry registry.Entry, constraint string) (string, bool) {
	if constraint == "" || constraint == "latest" {
		return entry.Latest, entry.Latest != ""
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", false
	}

	var best *semver.Version
	for _, raw := range entry.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return "", false
	}
	return best.Original(), true
}
