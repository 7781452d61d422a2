// Package memory provides an in-process calendar provider.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
)

// Source is an in-memory implementation of calendar.EventSource and
// calendar.Verifier. Calendars exist once an event was added or created.
type Source struct {
	mu     sync.RWMutex
	events map[domain.CalendarID][]*calendar.Event
	denied map[domain.CalendarID]bool
	now    func() time.Time
}

// Option configures Source.
type Option func(*Source)

// WithClock sets the time source used to filter ended events.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// NewSource creates a new in-memory calendar source.
func NewSource(opts ...Option) *Source {
	s := &Source{
		events: make(map[domain.CalendarID][]*calendar.Event),
		denied: make(map[domain.CalendarID]bool),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a copy of ev under id. An empty ev.ID gets a generated one.
func (s *Source) Add(id domain.CalendarID, ev calendar.Event) calendar.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := ev
	s.events[id] = append(s.events[id], &stored)
	return ev
}

// Deny makes Verify fail for id.
func (s *Source) Deny(id domain.CalendarID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[id] = true
}

// Get retrieves a copy of an event.
func (s *Source) Get(id domain.CalendarID, eventID string) (calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events[id] {
		if ev.ID == eventID {
			return *ev, nil
		}
	}
	return calendar.Event{}, calendar.ErrNotFound
}

// ListUpcoming returns at most max events that have not ended, ordered by start.
func (s *Source) ListUpcoming(_ context.Context, id domain.CalendarID, max int) ([]calendar.Event, error) {
	now := s.now()

	s.mu.RLock()
	var result []calendar.Event
	for _, ev := range s.events[id] {
		end := ev.End
		if end.IsZero() {
			end = ev.Start
		}
		if end.Before(now) {
			continue
		}
		result = append(result, *ev)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Start.Equal(result[j].Start) {
			return result[i].ID < result[j].ID
		}
		return result[i].Start.Before(result[j].Start)
	})

	if max > 0 && len(result) > max {
		result = result[:max]
	}
	return result, nil
}

// Create creates an event with a generated ID.
func (s *Source) Create(_ context.Context, id domain.CalendarID, title, description string, start, end time.Time) (*calendar.Event, error) {
	ev := s.Add(id, calendar.Event{
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
	})
	return &ev, nil
}

// AnnotateOutcome appends the outcome block to the event description.
func (s *Source) AnnotateOutcome(_ context.Context, id domain.CalendarID, eventID string, a calendar.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.events[id] {
		if ev.ID == eventID {
			ev.Description = calendar.AppendAnnotation(ev.Description, a)
			return nil
		}
	}
	return calendar.ErrNotFound
}

// Verify fails for calendars marked with Deny.
func (s *Source) Verify(_ context.Context, id domain.CalendarID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.denied[id] {
		return calendar.ErrAccessDenied
	}
	return nil
}

// Verify interface compliance at compile time.
var (
	_ calendar.EventSource = (*Source)(nil)
	_ calendar.Verifier    = (*Source)(nil)
)
