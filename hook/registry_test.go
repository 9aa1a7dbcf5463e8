package hook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

// countingHook opts in to a subset of events.
type countingHook struct {
	submitted int
	completed int
	shutdowns int
	err       error
}

func (h *countingHook) Name() string { return "counting" }

func (h *countingHook) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	h.submitted++
	return h.err
}

func (h *countingHook) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	h.completed++
	return h.err
}

func (h *countingHook) OnShutdown(_ context.Context) error {
	h.shutdowns++
	return h.err
}

func testJob() *job.Job {
	return &job.Job{ID: id.NewJobID(), Kind: job.KindNativeClaim}
}

func TestRegistryDispatchesToOptedInHooks(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	h := &countingHook{}
	r.Register(h)

	ctx := context.Background()
	j := testJob()

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobSubmitted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitShutdown(ctx)

	// Events the hook does not implement are silently skipped.
	r.EmitJobStarted(ctx, j)
	r.EmitJobFailed(ctx, j, errors.New("boom"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())

	if h.submitted != 2 {
		t.Fatalf("submitted = %d, want 2", h.submitted)
	}
	if h.completed != 1 {
		t.Fatalf("completed = %d, want 1", h.completed)
	}
	if h.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", h.shutdowns)
	}
}

func TestHookErrorsDoNotPropagate(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	failing := &countingHook{err: errors.New("hook broke")}
	healthy := &countingHook{}
	r.Register(failing)
	r.Register(healthy)

	r.EmitJobSubmitted(context.Background(), testJob())

	// The failing hook does not stop the healthy one.
	if failing.submitted != 1 || healthy.submitted != 1 {
		t.Fatalf("submitted = %d/%d, want 1/1", failing.submitted, healthy.submitted)
	}
}

func TestHooksAccessor(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&countingHook{})
	r.Register(&countingHook{})

	if got := len(r.Hooks()); got != 2 {
		t.Fatalf("hooks = %d, want 2", got)
	}
}
