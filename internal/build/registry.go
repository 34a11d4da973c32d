// SPDX-License-Identifier: MPL-2.0

// Package build deduplicates compilation of source projects within a single
// packaging run.
//
// A Registry maps a SourceIdentity to one shared build result. The first
// request for an identity runs the build through the run's build queue; every
// other request for the same identity, whether it arrives while the build is
// in flight or after it has finished, receives the same artifact or the same
// failure without building again.
package build

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/packwright/packwright/internal/buildqueue"
)

// ErrSharedBuildFailed is the sentinel error wrapped by SharedBuildError.
var ErrSharedBuildFailed = errors.New("shared build failed")

type (
	// SourceIdentity identifies a compilable project by its path as declared
	// in the manifest. Equality of the path, not file content, decides
	// deduplication.
	SourceIdentity string

	// Func builds a project and returns the path of the produced artifact.
	Func func(ctx context.Context) (artifact string, err error)

	// Result is the single outcome recorded for a SourceIdentity.
	Result struct {
		Artifact string
		Err      error
	}

	// SharedBuildError is returned to every caller of a failed build. It wraps
	// the original failure so errors.Is and errors.As still reach it.
	SharedBuildError struct {
		Source SourceIdentity
		Err    error
	}

	// Registry is the per-run map of build results. It is safe for concurrent use.
	Registry struct {
		queue   *buildqueue.Queue
		mu      sync.Mutex
		entries map[SourceIdentity]*pending
		builds  int
	}

	// pending holds a result that is published when done is closed.
	// waiters counts callers still interested in it; both it and done are
	// guarded by the registry's mu.
	pending struct {
		done    chan struct{}
		result  Result
		waiters int
		cancel  context.CancelFunc
	}
)

// NewRegistry creates an empty Registry whose builds run through queue.
// A nil queue gets a private one.
func NewRegistry(queue *buildqueue.Queue) *Registry {
	if queue == nil {
		queue = buildqueue.New()
	}
	return &Registry{
		queue:   queue,
		entries: make(map[SourceIdentity]*pending),
	}
}

// Reset forgets every recorded build. Callers waiting on an in-flight build
// still receive its result.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[SourceIdentity]*pending)
	r.builds = 0
}

// Builds reports how many builds this registry has started since the last Reset.
func (r *Registry) Builds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds
}

// BuildOnce returns the artifact for id, running fn through the build queue
// only if no build for id has been started in this run.
//
// A caller whose ctx is done stops waiting without touching the recorded
// result. The build itself is cancelled only when every caller waiting on it
// has given up; its entry is then dropped so a later request builds again.
func (r *Registry) BuildOnce(ctx context.Context, id SourceIdentity, fn Func) (string, error) {
	r.mu.Lock()
	p, ok := r.entries[id]
	if !ok {
		buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p = &pending{done: make(chan struct{}), cancel: cancel}
		r.entries[id] = p
		r.builds++
		go r.run(buildCtx, id, p, fn)
	}
	p.waiters++
	r.mu.Unlock()

	select {
	case <-p.done:
		return p.result.Artifact, p.result.Err
	default:
	}
	select {
	case <-p.done:
		return p.result.Artifact, p.result.Err
	case <-ctx.Done():
		r.abandon(id, p)
		return "", ctx.Err()
	}
}

// run executes fn on the queue and publishes its result on p.
func (r *Registry) run(ctx context.Context, id SourceIdentity, p *pending, fn Func) {
	defer p.cancel()

	var artifact string
	err := r.queue.Enqueue(ctx, func(ctx context.Context) error {
		var buildErr error
		artifact, buildErr = fn(ctx)
		return buildErr
	})

	result := Result{Artifact: artifact}
	if err != nil {
		result = Result{Err: &SharedBuildError{Source: id, Err: err}}
	}

	r.mu.Lock()
	p.result = result
	close(p.done)
	r.mu.Unlock()
}

// abandon drops one waiter from p and cancels the build once nobody waits.
func (r *Registry) abandon(id SourceIdentity, p *pending) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.waiters--
	if p.waiters > 0 || p.finished() {
		return
	}
	p.cancel()
	if r.entries[id] == p {
		delete(r.entries, id)
	}
}

// Lookup returns the recorded result for id if its build has finished.
func (r *Registry) Lookup(id SourceIdentity) (Result, bool) {
	r.mu.Lock()
	p, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result{}, false
	}
}

// finished reports whether p's result has been published.
func (p *pending) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Error implements the error interface.
func (e *SharedBuildError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Source, e.Err)
}

// Unwrap returns both the sentinel and the original failure.
func (e *SharedBuildError) Unwrap() []error {
	return []error{ErrSharedBuildFailed, e.Err}
}
