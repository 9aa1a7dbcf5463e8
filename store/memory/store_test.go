package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/classify"
	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

func newJob(recipient string) *job.Job {
	return &job.Job{
		Entity: drip.NewEntity(),
		ID:     id.NewJobID(),
		Kind:   job.KindNativeClaim,
		Payload: job.Payload{
			Recipient: recipient,
			Amount:    "1000000000000000000",
		},
		State:       job.StatePending,
		MaxAttempts: 3,
	}
}

func TestInsertAndGetJob(t *testing.T) {
	s := New()
	ctx := context.Background()

	j := newJob("0xabc")
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != j.ID || got.Payload.Recipient != "0xabc" {
		t.Fatalf("got %+v, want inserted job", got)
	}

	// Returned record is a copy.
	got.State = job.StateCompleted
	again, _ := s.GetJob(ctx, j.ID)
	if again.State != job.StatePending {
		t.Fatal("mutation of returned copy leaked into store")
	}
}

func TestInsertDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	j := newJob("0xabc")
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertJob(ctx, j); !errors.Is(err, drip.ErrJobAlreadyExists) {
		t.Fatalf("err = %v, want ErrJobAlreadyExists", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetJob(context.Background(), id.NewJobID()); !errors.Is(err, drip.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestUpdateJobAdvancesTimestamp(t *testing.T) {
	s := New()
	ctx := context.Background()

	j := newJob("0xabc")
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("insert: %v", err)
	}

	before := j.UpdatedAt
	time.Sleep(time.Millisecond)

	j.State = job.StateProcessing
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.State != job.StateProcessing {
		t.Fatalf("state = %s, want processing", got.State)
	}
	if !got.UpdatedAt.After(before) {
		t.Fatal("UpdatedAt did not advance on update")
	}
}

func TestListByRecipient(t *testing.T) {
	s := New()
	ctx := context.Background()

	a1 := newJob("0xaaa")
	b := newJob("0xbbb")
	time.Sleep(time.Millisecond)
	a2 := newJob("0xaaa")

	for _, j := range []*job.Job{a1, b, a2} {
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.ListByRecipient(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != a2.ID {
		t.Fatal("newest job not first")
	}
}

func TestListRecentLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.InsertJob(ctx, newJob(fmt.Sprintf("0x%d", i))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestDueRetries(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	due := newJob("0xaaa")
	due.State = job.StateRetrying
	due.NextRunAt = now.Add(-time.Second)

	notDue := newJob("0xbbb")
	notDue.State = job.StateRetrying
	notDue.NextRunAt = now.Add(time.Hour)

	pending := newJob("0xccc")

	for _, j := range []*job.Job{due, notDue, pending} {
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.DueRetries(ctx, now)
	if err != nil {
		t.Fatalf("due retries: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("got %d jobs, want exactly the due one", len(got))
	}
}

func TestPurgeTerminal(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := newJob("0xaaa")
	old.State = job.StateCompleted
	old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)

	fresh := newJob("0xbbb")
	fresh.State = job.StateFailed

	oldPending := newJob("0xccc")
	oldPending.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)

	for _, j := range []*job.Job{old, fresh, oldPending} {
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := s.PurgeTerminal(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	// Non-terminal jobs survive regardless of age.
	if _, err := s.GetJob(ctx, oldPending.ID); err != nil {
		t.Fatalf("old pending job was purged: %v", err)
	}
	if _, err := s.GetJob(ctx, old.ID); !errors.Is(err, drip.ErrJobNotFound) {
		t.Fatal("old terminal job survived purge")
	}
}

func TestCountJobs(t *testing.T) {
	s := New()
	ctx := context.Background()

	states := []job.State{
		job.StatePending, job.StatePending,
		job.StateProcessing,
		job.StateCompleted,
		job.StateFailed,
		job.StateRetrying,
	}
	for i, st := range states {
		j := newJob(fmt.Sprintf("0x%d", i))
		j.State = st
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	c, err := s.CountJobs(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if c.Total != 6 || c.Pending != 2 || c.Processing != 1 || c.Completed != 1 || c.Failed != 1 || c.Retrying != 1 {
		t.Fatalf("counts = %+v", c)
	}
}

func TestDLQCapacityEvictsOldest(t *testing.T) {
	s := New(WithDLQCapacity(2))
	ctx := context.Background()

	mkEntry := func() *dlq.Entry {
		j := newJob("0xabc")
		j.LastError = "boom"
		return dlq.NewEntry(j, classify.CategoryUnknown)
	}

	first := mkEntry()
	second := mkEntry()
	third := mkEntry()

	for _, e := range []*dlq.Entry{first, second, third} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	n, err := s.CountDLQ(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want capacity 2", n)
	}

	if _, err := s.GetDLQ(ctx, first.ID); !errors.Is(err, drip.ErrDLQNotFound) {
		t.Fatal("oldest entry was not evicted")
	}

	list, err := s.ListDLQ(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != third.ID {
		t.Fatal("entries not in insertion order after eviction")
	}
}

func TestSetDLQCapacityEvictsDown(t *testing.T) {
	s := New()
	ctx := context.Background()

	var entries []*dlq.Entry
	for i := 0; i < 4; i++ {
		j := newJob(fmt.Sprintf("0x%d", i))
		e := dlq.NewEntry(j, classify.CategoryUnknown)
		entries = append(entries, e)
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	s.SetDLQCapacity(2)

	n, err := s.CountDLQ(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want shrunk capacity 2", n)
	}

	// Oldest entries evicted, newest kept, and the new bound holds.
	list, err := s.ListDLQ(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].ID != entries[2].ID || list[1].ID != entries[3].ID {
		t.Fatal("eviction did not keep the newest entries")
	}

	if err := s.PushDLQ(ctx, dlq.NewEntry(newJob("0xnew"), classify.CategoryUnknown)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if n, _ := s.CountDLQ(ctx); n != 2 {
		t.Fatalf("count = %d after push, want capacity 2 enforced", n)
	}

	// Zero and negative are ignored.
	s.SetDLQCapacity(0)
	if n, _ := s.CountDLQ(ctx); n != 2 {
		t.Fatalf("count = %d, want capacity unchanged by zero", n)
	}
}

func TestDLQRemoveAndClear(t *testing.T) {
	s := New()
	ctx := context.Background()

	j := newJob("0xabc")
	e := dlq.NewEntry(j, classify.CategoryNetwork)
	if err := s.PushDLQ(ctx, e); err != nil {
		t.Fatalf("push: %v", err)
	}

	if err := s.RemoveDLQ(ctx, e.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveDLQ(ctx, e.ID); !errors.Is(err, drip.ErrDLQNotFound) {
		t.Fatalf("err = %v, want ErrDLQNotFound", err)
	}

	if err := s.PushDLQ(ctx, dlq.NewEntry(j, classify.CategoryUnknown)); err != nil {
		t.Fatalf("push: %v", err)
	}
	n, err := s.ClearDLQ(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleared = %d, want 1", n)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := s.Ping(ctx); !errors.Is(err, drip.ErrStoreClosed) {
		t.Fatalf("ping err = %v, want ErrStoreClosed", err)
	}
	if err := s.InsertJob(ctx, newJob("0xabc")); !errors.Is(err, drip.ErrStoreClosed) {
		t.Fatalf("insert err = %v, want ErrStoreClosed", err)
	}
	if _, err := s.ListDLQ(ctx); !errors.Is(err, drip.ErrStoreClosed) {
		t.Fatalf("list err = %v, want ErrStoreClosed", err)
	}
}
