package client

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/coordinator"
	"github.com/typedock-labs/typedock/internal/names"
	"github.com/typedock-labs/typedock/internal/registry"
)

// ErrUnsupportedRequest reports a request kind outside the typings
// acquisition flow. Such requests are rejected explicitly, never silently
// ignored.
var ErrUnsupportedRequest = errors.New("unsupported request kind")

// TypeAcquisitionSettings carries the per-project acquisition preferences
// the language service forwards with each request.
type TypeAcquisitionSettings struct {
	Enable  bool
	Include []string // package names to acquire regardless of imports
	Exclude []string // package names never to acquire
}

// ProjectRegistry is the callback surface through which completed installs
// reach the language service's project registry.
type ProjectRegistry interface {
	// ApplyTypings replaces the known declaration directories for a project.
	ApplyTypings(projectRoot string, typings []string)
	// InvalidateCachedTypings drops cached typings for a project after a
	// failed acquisition.
	InvalidateCachedTypings(projectRoot string)
	// PackageInstalled reports the terminal outcome for one package.
	PackageInstalled(success bool, packageName, message string)
	// BeginInstallTypes announces the packages about to be attempted.
	BeginInstallTypes(requestID uint64, packages []string)
	// EndInstallTypes announces completion with a success flag.
	EndInstallTypes(requestID uint64, success bool)
}

// Client is the boundary façade the language service calls. Its entry
// points return immediately; the long-running work happens on the
// coordinator's install pipeline.
type Client struct {
	cache     *registry.Cache
	coord     *coordinator.Coordinator
	cacheRoot string
	log       *zap.Logger

	nextID atomic.Uint64

	mu       sync.RWMutex
	projects ProjectRegistry
}

// New creates a Client over the registry cache and coordinator. All
// acquisition requests target cacheRoot.
func New(cache *registry.Cache, coord *coordinator.Coordinator, cacheRoot string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{cache: cache, coord: coord, cacheRoot: cacheRoot, log: log}
	coord.SetHandler(c.OnResponse)
	return c
}

// Attach supplies the project registry that receives completed installs.
func (c *Client) Attach(projects ProjectRegistry) {
	c.mu.Lock()
	c.projects = projects
	c.mu.Unlock()
}

// IsKnownTypesPackageName answers synchronously whether a declaration
// package plausibly exists for the name. Conservative: false until the
// registry index has loaded, with the first call triggering a background
// load.
func (c *Client) IsKnownTypesPackageName(name string) bool {
	return c.cache.IsKnownTypesPackage(name)
}

// EnqueueInstallTypingsRequest derives candidate declaration-package names
// from the project's unresolved imports and submits an acquisition request.
// It never blocks on resolution or install work. Projects with acquisition
// disabled enqueue nothing.
func (c *Client) EnqueueInstallTypingsRequest(projectRoot string, settings TypeAcquisitionSettings, unresolvedImports []string) {
	if !settings.Enable {
		c.log.Debug("type acquisition disabled for project", zap.String("project", projectRoot))
		return
	}

	pkgs := derivePackageNames(settings, unresolvedImports)
	if len(pkgs) == 0 {
		c.log.Debug("no candidate packages for project", zap.String("project", projectRoot))
		return
	}

	req := &coordinator.Request{
		ID:           c.nextID.Add(1),
		ProjectRoot:  projectRoot,
		PackageNames: pkgs,
		CacheRoot:    c.cacheRoot,
		CreatedAt:    time.Now(),
	}
	c.coord.Enqueue(req)
}

// derivePackageNames maps unresolved import module names to candidate
// declaration-package names, honoring the project's include/exclude lists.
// Order follows the (sorted) input; duplicates collapse.
func derivePackageNames(settings TypeAcquisitionSettings, unresolvedImports []string) []string {
	excluded := make(map[string]bool, len(settings.Exclude))
	for _, name := range settings.Exclude {
		excluded[name] = true
	}

	seen := make(map[string]bool)
	var pkgs []string
	add := func(name string) {
		if name == "" || seen[name] || excluded[name] {
			return
		}
		seen[name] = true
		pkgs = append(pkgs, name)
	}

	for _, mod := range unresolvedImports {
		add(names.Mangle(mod))
	}
	for _, name := range settings.Include {
		add(name)
	}
	return pkgs
}

// Wait blocks until all enqueued acquisition work has drained. Intended
// for one-shot callers and tests.
func (c *Client) Wait() {
	c.coord.Wait()
}

// OnProjectClosed is informational; pending work for the project is allowed
// to finish and its responses are simply not applied anywhere.
func (c *Client) OnProjectClosed(projectRoot string) {
	c.log.Debug("project closed", zap.String("project", projectRoot))
}

// HandleRequest dispatches a language-service request by kind. Only the
// typings-acquisition kinds are supported; anything else is rejected.
func (c *Client) HandleRequest(kind string, projectRoot string, settings TypeAcquisitionSettings, unresolvedImports []string) error {
	switch kind {
	case "installTypings":
		c.EnqueueInstallTypingsRequest(projectRoot, settings, unresolvedImports)
		return nil
	case "closeProject":
		c.OnProjectClosed(projectRoot)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedRequest, kind)
	}
}

// OnResponse is the single callback surface through which coordinator
// responses reach the language service. Every response kind is handled
// exhaustively; an unrecognized kind is a protocol violation with the
// collaborator and aborts rather than being dropped.
func (c *Client) OnResponse(resp coordinator.Response) {
	c.mu.RLock()
	projects := c.projects
	c.mu.RUnlock()
	if projects == nil {
		return
	}

	switch resp.Kind {
	case coordinator.KindBeginInstallTypes:
		projects.BeginInstallTypes(resp.RequestID, resp.Packages)
	case coordinator.KindEndInstallTypes:
		projects.EndInstallTypes(resp.RequestID, resp.Success)
	case coordinator.KindSetTypings:
		projects.ApplyTypings(resp.ProjectRoot, resp.Typings)
	case coordinator.KindInvalidateCachedTypings:
		projects.InvalidateCachedTypings(resp.ProjectRoot)
	case coordinator.KindPackageInstalled:
		projects.PackageInstalled(resp.Success, resp.PackageName, resp.Message)
	default:
		panic(fmt.Sprintf("unrecognized response kind %q: protocol mismatch", resp.Kind))
	}
}
