package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/typedock-labs/typedock/internal/installer"
	"github.com/typedock-labs/typedock/internal/resolver"
)

// fakePlanner resolves every requested name as-is at version 1.0.0.
type fakePlanner struct {
	err error
}

func (p *fakePlanner) Plan(requestID uint64, projectRoot string, packageNames []string) (*resolver.InstallPlan, error) {
	if p.err != nil {
		return nil, p.err
	}
	plan := &resolver.InstallPlan{RequestID: requestID, CacheRoot: "/cache"}
	for _, name := range packageNames {
		plan.Packages = append(plan.Packages, resolver.ResolvedPackage{Name: name, Version: "1.0.0"})
	}
	return plan, nil
}

// fakeExecutor records concurrency and execution order.
type fakeExecutor struct {
	delay      time.Duration
	fail       bool
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
	mu         sync.Mutex
	executions []uint64
}

func (e *fakeExecutor) Execute(ctx context.Context, plan *resolver.InstallPlan) installer.Outcome {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxFlight.Load()
		if cur <= max || e.maxFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.executions = append(e.executions, plan.RequestID)
	e.mu.Unlock()

	if e.fail {
		return installer.Outcome{RequestID: plan.RequestID, Reason: "simulated failure"}
	}
	out := installer.Outcome{RequestID: plan.RequestID, Success: true}
	for _, pkg := range plan.Packages {
		out.Installed = append(out.Installed, pkg.Name)
		out.Typings = append(out.Typings, "/cache/node_modules/"+pkg.Name)
	}
	return out
}

// recorder collects responses in order.
type recorder struct {
	mu        sync.Mutex
	responses []Response
}

func (r *recorder) handle(resp Response) {
	r.mu.Lock()
	r.responses = append(r.responses, resp)
	r.mu.Unlock()
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.responses))
	for i, resp := range r.responses {
		kinds[i] = resp.Kind
	}
	return kinds
}

func (r *recorder) byKind(kind Kind) []Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Response
	for _, resp := range r.responses {
		if resp.Kind == kind {
			out = append(out, resp)
		}
	}
	return out
}

func request(id uint64, cacheRoot string, pkgs ...string) *Request {
	return &Request{
		ID:           id,
		ProjectRoot:  "/proj",
		PackageNames: pkgs,
		CacheRoot:    cacheRoot,
		CreatedAt:    time.Now(),
	}
}

func TestEnqueue_EmitsFullResponseProtocol(t *testing.T) {
	rec := &recorder{}
	c := New(&fakePlanner{}, &fakeExecutor{}, nil)
	c.SetHandler(rec.handle)

	c.Enqueue(request(1, "/cache", "left-pad"))
	c.Wait()

	kinds := rec.kinds()
	want := []Kind{KindBeginInstallTypes, KindSetTypings, KindPackageInstalled, KindEndInstallTypes}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d responses, got %v", len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("response %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}

	begin := rec.byKind(KindBeginInstallTypes)[0]
	if len(begin.Packages) != 1 || begin.Packages[0] != "left-pad" {
		t.Errorf("begin notification should announce the packages, got %v", begin.Packages)
	}
	end := rec.byKind(KindEndInstallTypes)[0]
	if !end.Success {
		t.Error("end notification should carry success")
	}
	installed := rec.byKind(KindPackageInstalled)[0]
	if !installed.Success || installed.PackageName != "left-pad" {
		t.Errorf("unexpected packageInstalled response: %+v", installed)
	}

	if state, _ := c.RequestState(1); state != StateCompleted {
		t.Errorf("request should be completed, got %s", state)
	}
}

func TestEnqueue_FailureRelayedNotRetried(t *testing.T) {
	rec := &recorder{}
	exec := &fakeExecutor{fail: true}
	c := New(&fakePlanner{}, exec, nil)
	c.SetHandler(rec.handle)

	c.Enqueue(request(1, "/cache", "left-pad"))
	c.Wait()

	end := rec.byKind(KindEndInstallTypes)[0]
	if end.Success {
		t.Error("end notification should carry failure")
	}
	if len(rec.byKind(KindInvalidateCachedTypings)) != 1 {
		t.Error("failed install should invalidate cached typings")
	}
	installed := rec.byKind(KindPackageInstalled)[0]
	if installed.Success || installed.Message == "" {
		t.Errorf("failed packageInstalled should carry the reason, got %+v", installed)
	}

	exec.mu.Lock()
	executions := len(exec.executions)
	exec.mu.Unlock()
	if executions != 1 {
		t.Errorf("failures must not be retried, got %d executions", executions)
	}
	if state, _ := c.RequestState(1); state != StateFailed {
		t.Errorf("request should be failed, got %s", state)
	}
}

func TestEnqueue_PlanFailure(t *testing.T) {
	rec := &recorder{}
	c := New(&fakePlanner{err: fmt.Errorf("manifest unavailable")}, &fakeExecutor{}, nil)
	c.SetHandler(rec.handle)

	c.Enqueue(request(1, "/cache", "left-pad"))
	c.Wait()

	end := rec.byKind(KindEndInstallTypes)[0]
	if end.Success {
		t.Error("plan failure should end unsuccessfully")
	}
	// The raw request names answer when no plan exists.
	installed := rec.byKind(KindPackageInstalled)[0]
	if installed.PackageName != "left-pad" {
		t.Errorf("expected response for left-pad, got %+v", installed)
	}
}

func TestEnqueue_SerializesPerCacheRoot(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	c := New(&fakePlanner{}, exec, nil)
	c.SetHandler(func(Response) {})

	for i := 1; i <= 8; i++ {
		c.Enqueue(request(uint64(i), "/cache", "pkg"))
	}
	c.Wait()

	if max := exec.maxFlight.Load(); max != 1 {
		t.Errorf("at most one execution per cache root may be in flight, saw %d", max)
	}

	// FIFO submission order.
	exec.mu.Lock()
	defer exec.mu.Unlock()
	for i, id := range exec.executions {
		if id != uint64(i+1) {
			t.Errorf("execution %d: expected request %d, got %d", i, i+1, id)
			break
		}
	}
}

func TestEnqueue_DistinctCacheRootsRunConcurrently(t *testing.T) {
	exec := &fakeExecutor{delay: 50 * time.Millisecond}
	c := New(&fakePlanner{}, exec, nil)
	c.SetHandler(func(Response) {})

	start := time.Now()
	c.Enqueue(request(1, "/cache-a", "pkg"))
	c.Enqueue(request(2, "/cache-b", "pkg"))
	c.Wait()
	elapsed := time.Since(start)

	// Serial execution would take at least 100ms.
	if elapsed >= 100*time.Millisecond {
		t.Errorf("distinct cache roots should proceed concurrently, took %v", elapsed)
	}
}

func TestRequestState_TerminalHistoryIsBounded(t *testing.T) {
	c := New(&fakePlanner{}, &fakeExecutor{}, nil)
	c.SetHandler(func(Response) {})

	total := maxFinishedStates + 10
	for i := 1; i <= total; i++ {
		c.Enqueue(request(uint64(i), "/cache", "pkg"))
	}
	c.Wait()

	if _, ok := c.RequestState(1); ok {
		t.Error("oldest terminal state should have been evicted")
	}
	if state, ok := c.RequestState(uint64(total)); !ok || state != StateCompleted {
		t.Errorf("newest terminal state should be retained, got %v, %v", state, ok)
	}

	c.mu.Lock()
	retained := len(c.states)
	c.mu.Unlock()
	if retained > maxFinishedStates {
		t.Errorf("retained %d states, cap is %d", retained, maxFinishedStates)
	}
}

func TestEnqueue_ReturnsImmediately(t *testing.T) {
	exec := &fakeExecutor{delay: 200 * time.Millisecond}
	c := New(&fakePlanner{}, exec, nil)
	c.SetHandler(func(Response) {})

	start := time.Now()
	c.Enqueue(request(1, "/cache", "pkg"))
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Enqueue must not block on the install, took %v", elapsed)
	}
	c.Wait()
}
