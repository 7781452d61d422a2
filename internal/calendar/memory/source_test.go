package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func TestSource_CreateAndList(t *testing.T) {
	s := NewSource(WithClock(fixedClock))
	ctx := context.Background()
	id := domain.CalendarID("team@example.com")

	later, err := s.Create(ctx, id, "Send 2 SOL to bob", "", now.Add(2*time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)
	sooner, err := s.Create(ctx, id, "Send 1 SOL to bob", "", now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)

	assert.NotEmpty(t, later.ID)
	assert.NotEqual(t, later.ID, sooner.ID)

	events, err := s.ListUpcoming(ctx, id, 20)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, sooner.ID, events[0].ID)
	assert.Equal(t, later.ID, events[1].ID)
}

func TestSource_ListUpcoming_SkipsEndedAndLimits(t *testing.T) {
	s := NewSource(WithClock(fixedClock))
	ctx := context.Background()
	id := domain.CalendarID("team@example.com")

	s.Add(id, calendar.Event{ID: "ended", Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour)})
	s.Add(id, calendar.Event{ID: "ongoing", Start: now.Add(-time.Minute), End: now.Add(time.Hour)})
	s.Add(id, calendar.Event{ID: "a", Start: now.Add(time.Hour)})
	s.Add(id, calendar.Event{ID: "b", Start: now.Add(2 * time.Hour)})

	events, err := s.ListUpcoming(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ongoing", events[0].ID)
	assert.Equal(t, "a", events[1].ID)

	none, err := s.ListUpcoming(ctx, "other@example.com", 20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSource_AnnotateOutcome(t *testing.T) {
	s := NewSource(WithClock(fixedClock))
	ctx := context.Background()
	id := domain.CalendarID("team@example.com")

	ev, _ := s.Create(ctx, id, "Send 1 SOL to bob", "rent", now, now.Add(time.Hour))

	err := s.AnnotateOutcome(ctx, id, ev.ID, calendar.Annotation{
		Status:    domain.StatusExecuted,
		Signature: "sig123",
		UpdatedAt: now,
	})
	require.NoError(t, err)

	got, err := s.Get(id, ev.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Description, "rent\n\n---\n"))
	assert.Contains(t, got.Description, "**Signature:** sig123")
}

func TestSource_AnnotateOutcome_NotFound(t *testing.T) {
	s := NewSource()
	err := s.AnnotateOutcome(context.Background(), "team@example.com", "missing", calendar.Annotation{})
	assert.True(t, errors.Is(err, calendar.ErrNotFound))
}

func TestSource_Verify(t *testing.T) {
	s := NewSource()
	ctx := context.Background()

	assert.NoError(t, s.Verify(ctx, "team@example.com"))

	s.Deny("blocked@example.com")
	assert.ErrorIs(t, s.Verify(ctx, "blocked@example.com"), calendar.ErrAccessDenied)
}
