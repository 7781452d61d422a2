package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"calendefi/internal/domain"
	"calendefi/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
// A single lock covers events, the per-calendar index and the status index,
// so a status record is never visible without its terminal event.
type EventStore struct {
	mu         sync.RWMutex
	events     map[string]*domain.ScheduledEvent // keyed by event id
	byCalendar map[domain.CalendarID][]string    // event ids in insertion order
	statuses   map[string]domain.StatusRecord    // terminal events only
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:     make(map[string]*domain.ScheduledEvent),
		byCalendar: make(map[domain.CalendarID][]string),
		statuses:   make(map[string]domain.StatusRecord),
	}
}

// InsertIfAbsent stores a copy of e unless its ID is already present.
func (s *EventStore) InsertIfAbsent(_ context.Context, e *domain.ScheduledEvent) (bool, error) {
	if e == nil || e.ID == "" || e.CalendarID == "" {
		return false, storage.ErrInvalidInput
	}
	if e.Status != domain.StatusPending {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[e.ID]; exists {
		return false, nil
	}

	s.events[e.ID] = e.Clone()
	s.byCalendar[e.CalendarID] = append(s.byCalendar[e.CalendarID], e.ID)
	return true, nil
}

// Get retrieves an event by ID. Returns ErrNotFound if not exists.
func (s *EventStore) Get(_ context.Context, eventID string) (*domain.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.events[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// ListByCalendar retrieves all events of a calendar, ordered by start time ASC.
func (s *EventStore) ListByCalendar(_ context.Context, calendarID domain.CalendarID) ([]*domain.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCalendar[calendarID]
	result := make([]*domain.ScheduledEvent, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.events[id].Clone())
	}

	sortByStart(result)
	return result, nil
}

// ListDue retrieves pending events with start time <= now, ordered by start time ASC.
func (s *EventStore) ListDue(_ context.Context, now time.Time) ([]*domain.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScheduledEvent
	for _, e := range s.events {
		if e.IsDue(now) {
			result = append(result, e.Clone())
		}
	}

	sortByStart(result)
	return result, nil
}

// Transition moves a pending event to its terminal status and updates the
// status index under the same lock.
func (s *EventStore) Transition(_ context.Context, eventID string, outcome domain.Outcome, at time.Time) (*domain.ScheduledEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.events[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	if e.Status != domain.StatusPending {
		return nil, storage.ErrAlreadyTerminal
	}

	result := outcome
	executedAt := at
	e.Status = outcome.Status()
	e.Result = &result
	e.ExecutedAt = &executedAt

	s.statuses[eventID] = domain.NewStatusRecord(e)
	return e.Clone(), nil
}

// StatusOf retrieves the status record of a terminal event.
func (s *EventStore) StatusOf(_ context.Context, eventID string) (*domain.StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.statuses[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// StatusesByCalendar retrieves all status records of a calendar keyed by event ID.
func (s *EventStore) StatusesByCalendar(_ context.Context, calendarID domain.CalendarID) (map[string]domain.StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.StatusRecord)
	for _, id := range s.byCalendar[calendarID] {
		if rec, ok := s.statuses[id]; ok {
			result[id] = rec
		}
	}
	return result, nil
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func sortByStart(events []*domain.ScheduledEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
