// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/packwright/packwright/internal/buildqueue"
)

func TestRegistry_BuildOnce_SingleBuild(t *testing.T) {
	t.Parallel()

	r := NewRegistry(buildqueue.New())
	const n = 16

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "/out/shared.zip", nil
	}

	var wg sync.WaitGroup
	artifacts := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artifacts[i], errs[i] = r.BuildOnce(context.Background(), "src/App/App.csproj", fn)
		}()
	}

	// Let every caller register before the build finishes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("build function invoked %d times, want 1", got)
	}
	for i := range n {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if artifacts[i] != "/out/shared.zip" {
			t.Errorf("caller %d artifact = %q, want /out/shared.zip", i, artifacts[i])
		}
	}

	// A caller arriving after completion gets the recorded result.
	got, err := r.BuildOnce(context.Background(), "src/App/App.csproj", func(context.Context) (string, error) {
		t.Error("build function invoked again after completion")
		return "", nil
	})
	if err != nil || got != "/out/shared.zip" {
		t.Errorf("late BuildOnce() = %q, %v", got, err)
	}
	if r.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", r.Builds())
	}
}

func TestRegistry_BuildOnce_SharedFailure(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	errCompile := errors.New("exit status 1")

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "", errCompile
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.BuildOnce(context.Background(), "lib/Lib.csproj", fn)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("build function invoked %d times, want 1", got)
	}
	for i, err := range errs {
		if !errors.Is(err, errCompile) {
			t.Errorf("caller %d error = %v, want %v", i, err, errCompile)
		}
		if !errors.Is(err, ErrSharedBuildFailed) {
			t.Errorf("caller %d error = %v, want ErrSharedBuildFailed", i, err)
		}
	}

	res, ok := r.Lookup("lib/Lib.csproj")
	if !ok || !errors.Is(res.Err, errCompile) {
		t.Errorf("Lookup() = %+v, %v", res, ok)
	}
}

func TestRegistry_DistinctSourcesAreSerialized(t *testing.T) {
	t.Parallel()

	r := NewRegistry(buildqueue.New())

	var (
		running atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := SourceIdentity(fmt.Sprintf("p%d.csproj", i))
			_, err := r.BuildOnce(context.Background(), id, func(context.Context) (string, error) {
				if running.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return string(id) + ".zip", nil
			})
			if err != nil {
				t.Errorf("BuildOnce(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two builds ran at the same time")
	}
	if r.Builds() != 6 {
		t.Errorf("Builds() = %d, want 6", r.Builds())
	}
}

func TestRegistry_Reset(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		return "a.zip", nil
	}

	for range 2 {
		if _, err := r.BuildOnce(context.Background(), "a.csproj", fn); err != nil {
			t.Fatalf("BuildOnce() error = %v", err)
		}
	}
	r.Reset()
	if _, ok := r.Lookup("a.csproj"); ok {
		t.Error("Lookup() found entry after Reset")
	}
	if _, err := r.BuildOnce(context.Background(), "a.csproj", fn); err != nil {
		t.Fatalf("BuildOnce() error = %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("build function invoked %d times, want 2 (one per run)", got)
	}
}

func TestRegistry_WaiterContextCancelled(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = r.BuildOnce(context.Background(), "slow.csproj", func(context.Context) (string, error) {
			close(started)
			<-release
			return "slow.zip", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.BuildOnce(ctx, "slow.csproj", func(context.Context) (string, error) {
		t.Error("duplicate build started")
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("BuildOnce() error = %v, want context.Canceled", err)
	}
	close(release)
}

// waitForWaiters polls until n callers wait on the build for id.
func waitForWaiters(t *testing.T, r *Registry, id SourceIdentity, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		r.mu.Lock()
		p, ok := r.entries[id]
		got := 0
		if ok {
			got = p.waiters
		}
		r.mu.Unlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("waiters on %s = %d, want %d", id, got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

// holdQueue keeps queue busy until the returned func is called.
func holdQueue(queue *buildqueue.Queue) (release func()) {
	gate := make(chan struct{})
	busy := make(chan struct{})
	go func() {
		_ = queue.Enqueue(context.Background(), func(context.Context) error {
			close(busy)
			<-gate
			return nil
		})
	}()
	<-busy
	return func() { close(gate) }
}

func TestRegistry_FirstCallerCancelledMidBuild(t *testing.T) {
	t.Parallel()

	queue := buildqueue.New()
	r := NewRegistry(queue)
	releaseQueue := holdQueue(queue)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return "/out/a.zip", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.BuildOnce(ctx, "a.csproj", fn)
		firstErr <- err
	}()
	waitForWaiters(t, r, "a.csproj", 1)

	type outcome struct {
		artifact string
		err      error
	}
	second := make(chan outcome, 1)
	go func() {
		artifact, err := r.BuildOnce(context.Background(), "a.csproj", fn)
		second <- outcome{artifact, err}
	}()
	waitForWaiters(t, r, "a.csproj", 2)

	releaseQueue()
	<-started
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled BuildOnce() error = %v, want context.Canceled", err)
	}
	close(release)

	if got := <-second; got.err != nil || got.artifact != "/out/a.zip" {
		t.Errorf("waiting BuildOnce() = %q, %v; want /out/a.zip, nil", got.artifact, got.err)
	}
	got, err := r.BuildOnce(context.Background(), "a.csproj", func(context.Context) (string, error) {
		t.Error("build function invoked again")
		return "", nil
	})
	if err != nil || got != "/out/a.zip" {
		t.Errorf("late BuildOnce() = %q, %v; want /out/a.zip, nil", got, err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("build function invoked %d times, want 1", n)
	}
}

func TestRegistry_AbandonedBuildIsNotRecorded(t *testing.T) {
	t.Parallel()

	queue := buildqueue.New()
	r := NewRegistry(queue)
	releaseQueue := holdQueue(queue)

	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		started <- struct{}{}
		select {
		case <-release:
			return "/out/a.zip", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.BuildOnce(ctx, "a.csproj", fn)
		firstErr <- err
	}()
	waitForWaiters(t, r, "a.csproj", 1)

	releaseQueue()
	<-started
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled BuildOnce() error = %v, want context.Canceled", err)
	}
	close(release)

	got, err := r.BuildOnce(context.Background(), "a.csproj", fn)
	if err != nil || got != "/out/a.zip" {
		t.Errorf("BuildOnce() after abandoned build = %q, %v; want /out/a.zip, nil", got, err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("build function invoked %d times, want 2 (abandoned build, then rebuild)", n)
	}
}
