package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/installer"
	"github.com/typedock-labs/typedock/internal/resolver"
)

// State tracks a request through its lifecycle.
type State int

const (
	StateQueued State = iota
	StateResolving
	StateInstalling
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateResolving:
		return "resolving"
	case StateInstalling:
		return "installing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is one acquisition request. Requests are immutable and consumed
// exactly once.
type Request struct {
	ID           uint64
	ProjectRoot  string
	PackageNames []string
	CacheRoot    string
	CreatedAt    time.Time
}

// Planner computes install plans. Satisfied by *resolver.Resolver.
type Planner interface {
	Plan(requestID uint64, projectRoot string, packageNames []string) (*resolver.InstallPlan, error)
}

// Executor runs install plans. Satisfied by *installer.Worker.
type Executor interface {
	Execute(ctx context.Context, plan *resolver.InstallPlan) installer.Outcome
}

// Coordinator owns the queue of pending acquisition requests. Requests for
// the same cache root run serialized in FIFO order, at most one executor
// run per cache root at a time, while distinct cache roots may proceed
// concurrently. The coordinator itself never fails; it only relays outcomes.
type Coordinator struct {
	planner  Planner
	executor Executor
	log      *zap.Logger

	mu       sync.Mutex
	handler  Handler
	queues   map[string]*rootQueue
	states   map[uint64]State
	finished []uint64 // terminal request ids, oldest first, capped

	wg sync.WaitGroup
}

// maxFinishedStates bounds how many completed or failed request states are
// retained; older terminal entries are evicted so the map cannot grow without
// bound in a long-lived process.
const maxFinishedStates = 128

// rootQueue serializes installs for one cache root.
type rootQueue struct {
	pending []*Request
	busy    bool
}

// New creates a Coordinator driving the given planner and executor.
func New(planner Planner, executor Executor, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		planner:  planner,
		executor: executor,
		log:      log,
		queues:   make(map[string]*rootQueue),
		states:   make(map[uint64]State),
	}
}

// SetHandler installs the response callback. Responses emitted before a
// handler is attached are dropped.
func (c *Coordinator) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Enqueue appends a request to its cache root's queue and returns
// immediately. If an install for the same cache root is already running the
// request waits its turn rather than interleaving.
func (c *Coordinator) Enqueue(req *Request) {
	c.mu.Lock()
	q := c.queues[req.CacheRoot]
	if q == nil {
		q = &rootQueue{}
		c.queues[req.CacheRoot] = q
	}
	q.pending = append(q.pending, req)
	c.states[req.ID] = StateQueued
	start := !q.busy
	if start {
		q.busy = true
		c.wg.Add(1)
	}
	c.mu.Unlock()

	c.log.Debug("request queued",
		zap.Uint64("request_id", req.ID),
		zap.String("cache_root", req.CacheRoot),
		zap.Strings("packages", req.PackageNames))

	if start {
		go c.drain(req.CacheRoot)
	}
}

// drain runs queued requests for one cache root, one at a time, until the
// queue empties.
func (c *Coordinator) drain(cacheRoot string) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		q := c.queues[cacheRoot]
		if len(q.pending) == 0 {
			q.busy = false
			c.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		c.mu.Unlock()

		c.run(req)
	}
}

// run drives one request through the state machine and emits the response
// protocol. Failures are relayed, never retried, and never escape.
func (c *Coordinator) run(req *Request) {
	c.setState(req, StateResolving)
	c.emit(Response{
		Kind:        KindBeginInstallTypes,
		RequestID:   req.ID,
		ProjectRoot: req.ProjectRoot,
		Packages:    req.PackageNames,
	})

	var outcome installer.Outcome
	plan, err := c.planner.Plan(req.ID, req.ProjectRoot, req.PackageNames)
	if err != nil {
		outcome = installer.Outcome{RequestID: req.ID, Reason: err.Error()}
	} else {
		c.setState(req, StateInstalling)
		outcome = c.executor.Execute(context.Background(), plan)
	}

	if outcome.Success {
		c.setState(req, StateCompleted)
		c.emit(Response{
			Kind:        KindSetTypings,
			RequestID:   req.ID,
			ProjectRoot: req.ProjectRoot,
			Success:     true,
			Typings:     outcome.Typings,
		})
	} else {
		c.setState(req, StateFailed)
		c.emit(Response{
			Kind:        KindInvalidateCachedTypings,
			RequestID:   req.ID,
			ProjectRoot: req.ProjectRoot,
			Message:     outcome.Reason,
		})
	}

	for _, name := range respondedPackages(req, plan) {
		c.emit(Response{
			Kind:        KindPackageInstalled,
			RequestID:   req.ID,
			ProjectRoot: req.ProjectRoot,
			Success:     outcome.Success,
			PackageName: name,
			Message:     outcome.Reason,
		})
	}

	c.emit(Response{
		Kind:        KindEndInstallTypes,
		RequestID:   req.ID,
		ProjectRoot: req.ProjectRoot,
		Success:     outcome.Success,
		Message:     outcome.Reason,
	})
}

// respondedPackages lists the package names a request answers for: the
// resolved plan when one exists, otherwise the raw request.
func respondedPackages(req *Request, plan *resolver.InstallPlan) []string {
	if plan == nil {
		return req.PackageNames
	}
	names := make([]string, 0, len(plan.Packages))
	for _, pkg := range plan.Packages {
		names = append(names, pkg.Name)
	}
	return names
}

func (c *Coordinator) setState(req *Request, s State) {
	c.mu.Lock()
	c.states[req.ID] = s
	if s == StateCompleted || s == StateFailed {
		c.finished = append(c.finished, req.ID)
		for len(c.finished) > maxFinishedStates {
			delete(c.states, c.finished[0])
			c.finished = c.finished[1:]
		}
	}
	c.mu.Unlock()
	c.log.Debug("request state change",
		zap.Uint64("request_id", req.ID),
		zap.Stringer("state", s))
}

// RequestState returns the last observed state for a request id.
func (c *Coordinator) RequestState(id uint64) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[id]
	return s, ok
}

func (c *Coordinator) emit(resp Response) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(resp)
	}
}

// Wait blocks until every queue has drained. Intended for one-shot callers
// and tests; long-running services never need it.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
