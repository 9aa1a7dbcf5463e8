package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/engine"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
	"github.com/xraph/drip/scheduler"
	"github.com/xraph/drip/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() drip.Config {
	cfg := drip.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.RetryScanInterval = 5 * time.Millisecond
	cfg.SubmitTimeout = time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.SweepInterval = time.Hour // keep the sweeper quiet during tests
	return cfg
}

func newEngine(t *testing.T, exec scheduler.Executor, opts ...engine.Option) *engine.Engine {
	t.Helper()

	opts = append([]engine.Option{
		engine.WithConfig(testConfig()),
		engine.WithLogger(discardLogger()),
	}, opts...)

	eng, err := engine.New(memory.New(), exec, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func start(t *testing.T, eng *engine.Engine) {
	t.Helper()

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Stop(stopCtx)
	})
}

func nativePayload(recipient string) job.Payload {
	return job.Payload{Recipient: recipient, Amount: "1000000000000000000"}
}

func okExecutor() scheduler.Executor {
	return scheduler.ExecutorFunc(func(_ context.Context, _ job.Kind, _ job.Payload) (string, error) {
		return "0xtx", nil
	})
}

// waitForState polls the engine until the job reaches the wanted state.
func waitForState(t *testing.T, eng *engine.Engine, jobID id.JobID, want job.State) *job.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := eng.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if j.State == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := eng.Get(context.Background(), jobID)
	t.Fatalf("job %s state = %s, want %s", jobID, j.State, want)
	return nil
}

func TestNewValidation(t *testing.T) {
	if _, err := engine.New(nil, okExecutor()); !errors.Is(err, drip.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
	if _, err := engine.New(memory.New(), nil); !errors.Is(err, drip.ErrNoExecutor) {
		t.Fatalf("err = %v, want ErrNoExecutor", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	eng := newEngine(t, okExecutor())
	ctx := context.Background()

	if _, err := eng.Submit(ctx, job.KindNativeClaim, job.Payload{}); !errors.Is(err, drip.ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload for missing recipient", err)
	}
	if _, err := eng.Submit(ctx, job.Kind("claim.bogus"), nativePayload("0xabc")); !errors.Is(err, drip.ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
	if _, err := eng.Submit(ctx, job.KindTokenClaim, nativePayload("0xabc")); !errors.Is(err, drip.ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload for token claim without asset", err)
	}
}

func TestSubmitAndComplete(t *testing.T) {
	eng := newEngine(t, okExecutor())
	start(t, eng)

	j, err := eng.Submit(context.Background(), job.KindNativeClaim, nativePayload("0xabc"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.State != job.StatePending {
		t.Fatalf("state = %s, want pending right after submit", j.State)
	}

	got := waitForState(t, eng, j.ID, job.StateCompleted)
	if got.Result != "0xtx" {
		t.Fatalf("result = %q, want submission id", got.Result)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}

	st, err := eng.Status(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Position != 0 || st.EstimatedWait != 0 {
		t.Fatalf("terminal status = %+v, want no position or wait", st)
	}
}

func TestDispatchOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	exec := scheduler.ExecutorFunc(func(_ context.Context, _ job.Kind, p job.Payload) (string, error) {
		mu.Lock()
		order = append(order, p.Recipient)
		mu.Unlock()
		return "0xtx", nil
	})

	cfg := testConfig()
	cfg.Concurrency = 1 // serialize so dispatch order is observable
	eng, err := engine.New(memory.New(), exec,
		engine.WithConfig(cfg),
		engine.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// Same-priority ties break by submission time.
	var last *job.Job
	for i, p := range []int{2, 1, 2, 1, 3} {
		last, err = eng.Submit(context.Background(), job.KindNativeClaim,
			nativePayload(fmt.Sprintf("job%d", i+1)), job.WithPriority(p))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	start(t, eng)
	waitForState(t, eng, last.ID, job.StateCompleted)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"job2", "job4", "job1", "job3", "job5"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStatusPositionAndWait(t *testing.T) {
	eng := newEngine(t, okExecutor()) // not started: jobs stay queued

	ctx := context.Background()
	var jobs []*job.Job
	for i := 0; i < 3; i++ {
		j, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload(fmt.Sprintf("0x%d", i)))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		jobs = append(jobs, j)
		time.Sleep(time.Millisecond)
	}

	for i, j := range jobs {
		st, err := eng.Status(ctx, j.ID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Position != i+1 {
			t.Fatalf("position = %d, want %d", st.Position, i+1)
		}
		if st.EstimatedWait <= 0 {
			t.Fatalf("estimated wait = %v, want > 0 for pending job", st.EstimatedWait)
		}
	}

	// A higher-urgency submission jumps ahead of the default band.
	urgent, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload("0xurgent"), job.WithPriority(-1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	st, err := eng.Status(ctx, urgent.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Position != 1 {
		t.Fatalf("urgent position = %d, want 1", st.Position)
	}
}

func TestCancelPendingOnly(t *testing.T) {
	eng := newEngine(t, okExecutor()) // not started
	ctx := context.Background()

	j, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload("0xabc"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancelled, err := eng.Cancel(ctx, j.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State != job.StateFailed {
		t.Fatalf("state = %s, want failed", cancelled.State)
	}
	if cancelled.LastError != "cancelled by caller" {
		t.Fatalf("last error = %q, want cancellation reason", cancelled.LastError)
	}

	// Already terminal: a second cancel is rejected.
	if _, err := eng.Cancel(ctx, j.ID); !errors.Is(err, drip.ErrNotCancellable) {
		t.Fatalf("err = %v, want ErrNotCancellable", err)
	}

	// Cancellation does not dead-letter.
	entries, err := eng.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dlq = %d entries, want 0", len(entries))
	}
}

func TestCancelUnknownJob(t *testing.T) {
	eng := newEngine(t, okExecutor())
	if _, err := eng.Cancel(context.Background(), id.NewJobID()); !errors.Is(err, drip.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestNonRetryableDeadLettersAndReplay(t *testing.T) {
	var healthy atomic.Bool
	exec := scheduler.ExecutorFunc(func(_ context.Context, _ job.Kind, _ job.Payload) (string, error) {
		if healthy.Load() {
			return "0xtx", nil
		}
		return "", errors.New("insufficient funds in faucet wallet")
	})

	eng := newEngine(t, exec)
	start(t, eng)
	ctx := context.Background()

	j, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload("0xabc"), job.WithPriority(5))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got := waitForState(t, eng, j.ID, job.StateFailed)
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 for non-retryable failure", got.Attempts)
	}

	entries, err := eng.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq = %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.JobID != j.ID || entry.Priority != 5 {
		t.Fatalf("entry = %+v, want snapshot of failed job", entry)
	}

	// Refill the faucet and replay, keyed by the failed job's id —
	// the handle the caller already holds.
	healthy.Store(true)
	replayed, err := eng.ReplayDeadLetter(ctx, j.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.ID == j.ID {
		t.Fatal("replayed job reused the original id")
	}
	if replayed.Attempts != 0 || replayed.Priority != 5 {
		t.Fatalf("replayed = %+v, want fresh attempts and original priority", replayed)
	}

	waitForState(t, eng, replayed.ID, job.StateCompleted)

	entries, err = eng.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dlq = %d entries after replay, want 0", len(entries))
	}

	// The consumed entry cannot be replayed twice.
	if _, err := eng.ReplayDeadLetter(ctx, j.ID); !errors.Is(err, drip.ErrDLQNotFound) {
		t.Fatalf("err = %v, want ErrDLQNotFound after entry consumed", err)
	}
}

func TestReplayUnknownJob(t *testing.T) {
	eng := newEngine(t, okExecutor())

	_, err := eng.ReplayDeadLetter(context.Background(), id.NewJobID())
	if !errors.Is(err, drip.ErrDLQNotFound) {
		t.Fatalf("err = %v, want ErrDLQNotFound", err)
	}
}

func TestDLQCapacityFromConfig(t *testing.T) {
	exec := scheduler.ExecutorFunc(func(_ context.Context, _ job.Kind, _ job.Payload) (string, error) {
		return "", errors.New("recipient on blacklist")
	})

	cfg := testConfig()
	cfg.DLQCapacity = 1
	cfg.Concurrency = 1 // serialize failures so the surviving entry is deterministic
	eng, err := engine.New(memory.New(), exec,
		engine.WithConfig(cfg),
		engine.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	start(t, eng)
	ctx := context.Background()

	var jobs []*job.Job
	for i := 0; i < 3; i++ {
		j, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload(fmt.Sprintf("0x%d", i)))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		jobs = append(jobs, j)
		time.Sleep(time.Millisecond)
	}
	for _, j := range jobs {
		waitForState(t, eng, j.ID, job.StateFailed)
	}

	entries, err := eng.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq = %d entries, want configured capacity 1", len(entries))
	}
	if entries[0].JobID != jobs[2].ID {
		t.Fatalf("surviving entry = %s, want the newest failure %s", entries[0].JobID, jobs[2].ID)
	}
}

func TestPartialConfigBackfilled(t *testing.T) {
	// Only two fields set: everything else, including the retry scan
	// and sweep intervals, must backfill instead of producing zero
	// tickers in the engine loops.
	cfg := drip.Config{TickInterval: 10 * time.Millisecond, Concurrency: 1}
	eng, err := engine.New(memory.New(), okExecutor(),
		engine.WithConfig(cfg),
		engine.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	start(t, eng)

	j, err := eng.Submit(context.Background(), job.KindNativeClaim, nativePayload("0xabc"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got := waitForState(t, eng, j.ID, job.StateCompleted)
	if got.MaxAttempts != drip.DefaultConfig().MaxAttempts {
		t.Fatalf("max attempts = %d, want backfilled default", got.MaxAttempts)
	}
}

func TestDrainProcessesBacklog(t *testing.T) {
	eng := newEngine(t, okExecutor())
	ctx := context.Background()

	var jobs []*job.Job
	for i := 0; i < 5; i++ {
		j, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload(fmt.Sprintf("0x%d", i)))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		jobs = append(jobs, j)
	}

	start(t, eng)

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := eng.Drain(drainCtx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	for _, j := range jobs {
		got, err := eng.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.State.Terminal() {
			t.Fatalf("job %s state = %s after drain, want terminal", j.ID, got.State)
		}
	}

	if _, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload("0xlate")); !errors.Is(err, drip.ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed after drain", err)
	}
}

func TestStopRejectsNewSubmissions(t *testing.T) {
	eng := newEngine(t, okExecutor())
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := eng.Submit(context.Background(), job.KindNativeClaim, nativePayload("0xabc")); !errors.Is(err, drip.ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed after stop", err)
	}
}

func TestStats(t *testing.T) {
	eng := newEngine(t, okExecutor()) // not started
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := eng.Submit(ctx, job.KindNativeClaim, nativePayload(fmt.Sprintf("0x%d", i))); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Jobs.Pending != 4 || stats.QueueDepth != 4 {
		t.Fatalf("stats = %+v, want 4 pending", stats)
	}
	if stats.InFlight != 0 || stats.DeadLetter != 0 {
		t.Fatalf("stats = %+v, want nothing in flight or dead-lettered", stats)
	}
}

// lifecycleHook records which events fired.
type lifecycleHook struct {
	submitted atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32
}

func (h *lifecycleHook) Name() string { return "test-lifecycle" }

func (h *lifecycleHook) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	h.submitted.Add(1)
	return nil
}

func (h *lifecycleHook) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	h.completed.Add(1)
	return nil
}

func (h *lifecycleHook) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	h.failed.Add(1)
	return nil
}

func TestLifecycleHooks(t *testing.T) {
	h := &lifecycleHook{}
	eng := newEngine(t, okExecutor(), engine.WithHook(h))
	start(t, eng)

	j, err := eng.Submit(context.Background(), job.KindNativeClaim, nativePayload("0xabc"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForState(t, eng, j.ID, job.StateCompleted)

	if h.submitted.Load() != 1 {
		t.Fatalf("submitted hooks = %d, want 1", h.submitted.Load())
	}
	if h.completed.Load() != 1 {
		t.Fatalf("completed hooks = %d, want 1", h.completed.Load())
	}
	if h.failed.Load() != 0 {
		t.Fatalf("failed hooks = %d, want 0", h.failed.Load())
	}
}
