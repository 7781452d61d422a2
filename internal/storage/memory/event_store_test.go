package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
	"calendefi/internal/storage"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newEvent(id string, calendar domain.CalendarID, start time.Time) *domain.ScheduledEvent {
	return &domain.ScheduledEvent{
		ID:         id,
		CalendarID: calendar,
		Title:      "Send 1 SOL to bob",
		StartTime:  start,
		Intent:     domain.NewTransfer(decimal.NewFromInt(1), "SOL", "bob"),
		Status:     domain.StatusPending,
		CreatedAt:  baseTime,
		Provenance: domain.ProvenanceProvider,
	}
}

func TestEventStore_InsertAndGet(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	inserted, err := store.InsertIfAbsent(ctx, newEvent("ev1", "cal@example.com", baseTime))
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to store the event")
	}

	got, err := store.Get(ctx, "ev1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Send 1 SOL to bob" {
		t.Errorf("Title mismatch: got %s", got.Title)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status mismatch: got %s", got.Status)
	}
}

func TestEventStore_InsertIfAbsentIsNoOpForKnownID(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	original := newEvent("ev1", "cal@example.com", baseTime)
	if _, err := store.InsertIfAbsent(ctx, original); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}

	changed := newEvent("ev1", "cal@example.com", baseTime.Add(time.Hour))
	changed.Title = "Send 99 SOL to mallory"
	inserted, err := store.InsertIfAbsent(ctx, changed)
	if err != nil {
		t.Fatalf("second InsertIfAbsent failed: %v", err)
	}
	if inserted {
		t.Error("expected second insert to be a no-op")
	}

	got, _ := store.Get(ctx, "ev1")
	if got.Title != original.Title || !got.StartTime.Equal(original.StartTime) {
		t.Errorf("stored event changed: %+v", got)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 event, got %d", store.Len())
	}
}

func TestEventStore_InsertInvalid(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if _, err := store.InsertIfAbsent(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if _, err := store.InsertIfAbsent(ctx, newEvent("", "cal@example.com", baseTime)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}

	terminal := newEvent("ev1", "cal@example.com", baseTime)
	terminal.Status = domain.StatusExecuted
	if _, err := store.InsertIfAbsent(ctx, terminal); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for non-pending event, got %v", err)
	}
}

func TestEventStore_NotFound(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.Transition(ctx, "missing", domain.Failed("x"), baseTime); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Transition, got %v", err)
	}
	if _, err := store.StatusOf(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from StatusOf, got %v", err)
	}
}

func TestEventStore_ReturnsCopies(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := newEvent("ev1", "cal@example.com", baseTime)
	store.InsertIfAbsent(ctx, e)
	e.Title = "mutated after insert"

	got, _ := store.Get(ctx, "ev1")
	got.Status = domain.StatusExecuted

	again, _ := store.Get(ctx, "ev1")
	if again.Title != "Send 1 SOL to bob" {
		t.Errorf("external mutation leaked into store: %s", again.Title)
	}
	if again.Status != domain.StatusPending {
		t.Errorf("external mutation leaked into store: %s", again.Status)
	}
}

func TestEventStore_ListDue(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("late", "cal@example.com", baseTime.Add(-time.Minute)))
	store.InsertIfAbsent(ctx, newEvent("now", "cal@example.com", baseTime))
	store.InsertIfAbsent(ctx, newEvent("future", "cal@example.com", baseTime.Add(time.Minute)))
	store.InsertIfAbsent(ctx, newEvent("done", "cal@example.com", baseTime.Add(-time.Hour)))
	store.Transition(ctx, "done", domain.Succeeded("sig", ""), baseTime)

	due, err := store.ListDue(ctx, baseTime)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due events, got %d", len(due))
	}
	if due[0].ID != "late" || due[1].ID != "now" {
		t.Errorf("unexpected order: %s, %s", due[0].ID, due[1].ID)
	}
}

func TestEventStore_ListByCalendar(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("b", "one@example.com", baseTime.Add(time.Hour)))
	store.InsertIfAbsent(ctx, newEvent("a", "one@example.com", baseTime))
	store.InsertIfAbsent(ctx, newEvent("c", "two@example.com", baseTime))

	events, err := store.ListByCalendar(ctx, "one@example.com")
	if err != nil {
		t.Fatalf("ListByCalendar failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", events[0].ID, events[1].ID)
	}

	none, _ := store.ListByCalendar(ctx, "unknown@example.com")
	if len(none) != 0 {
		t.Errorf("expected no events, got %d", len(none))
	}
}

func TestEventStore_TransitionOnce(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("ev1", "cal@example.com", baseTime))

	got, err := store.Transition(ctx, "ev1", domain.Succeeded("sig123", "https://explorer/tx/sig123"), baseTime)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.Status != domain.StatusExecuted {
		t.Errorf("expected executed, got %s", got.Status)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(baseTime) {
		t.Errorf("ExecutedAt not set: %v", got.ExecutedAt)
	}

	_, err = store.Transition(ctx, "ev1", domain.Failed("late failure"), baseTime.Add(time.Minute))
	if !errors.Is(err, storage.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}

	after, _ := store.Get(ctx, "ev1")
	if after.Status != domain.StatusExecuted || after.Result.Signature != "sig123" {
		t.Errorf("recorded outcome changed: %+v", after.Result)
	}
	if !after.ExecutedAt.Equal(baseTime) {
		t.Errorf("ExecutedAt changed: %v", after.ExecutedAt)
	}

	rec, _ := store.StatusOf(ctx, "ev1")
	if rec.Signature != "sig123" || rec.Status != domain.StatusExecuted {
		t.Errorf("status record changed: %+v", rec)
	}
}

func TestEventStore_TransitionFailedRecordsReason(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("ev1", "cal@example.com", baseTime))
	store.Transition(ctx, "ev1", domain.Failed("unsupported"), baseTime)

	rec, err := store.StatusOf(ctx, "ev1")
	if err != nil {
		t.Fatalf("StatusOf failed: %v", err)
	}
	if rec.Status != domain.StatusFailed {
		t.Errorf("expected failed, got %s", rec.Status)
	}
	if rec.Error != "unsupported" {
		t.Errorf("expected reason unsupported, got %q", rec.Error)
	}
	if rec.Signature != "" {
		t.Errorf("expected no signature, got %q", rec.Signature)
	}
}

func TestEventStore_PendingEventHasNoStatusRecord(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("ev1", "cal@example.com", baseTime))

	if _, err := store.StatusOf(ctx, "ev1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for pending event, got %v", err)
	}
}

func TestEventStore_ConcurrentTransitionsSingleWinner(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	store.InsertIfAbsent(ctx, newEvent("ev1", "cal@example.com", baseTime))

	const n = 32
	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := domain.Succeeded("sig", "")
			if i%2 == 1 {
				outcome = domain.Failed("boom")
			}
			_, err := store.Transition(ctx, "ev1", outcome, baseTime)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, storage.ErrAlreadyTerminal):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
	if losses.Load() != n-1 {
		t.Errorf("expected %d losers, got %d", n-1, losses.Load())
	}

	e, _ := store.Get(ctx, "ev1")
	rec, _ := store.StatusOf(ctx, "ev1")
	if rec.Status != e.Status {
		t.Errorf("status index %s disagrees with event %s", rec.Status, e.Status)
	}
}

func TestEventStore_StatusesByCalendar(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	store.InsertIfAbsent(ctx, newEvent("a", "one@example.com", baseTime))
	store.InsertIfAbsent(ctx, newEvent("b", "one@example.com", baseTime))
	store.InsertIfAbsent(ctx, newEvent("c", "two@example.com", baseTime))
	store.Transition(ctx, "a", domain.Succeeded("sigA", ""), baseTime)
	store.Transition(ctx, "c", domain.Failed("nope"), baseTime)

	statuses, err := store.StatusesByCalendar(ctx, "one@example.com")
	if err != nil {
		t.Fatalf("StatusesByCalendar failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses["a"].Signature != "sigA" {
		t.Errorf("unexpected record: %+v", statuses["a"])
	}
}
