package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"calendefi/internal/domain"
	"calendefi/internal/storage"
)

// CalendarStore is an in-memory implementation of storage.CalendarStore.
type CalendarStore struct {
	mu   sync.RWMutex
	data map[domain.CalendarID]*storage.Calendar
}

// NewCalendarStore creates a new in-memory calendar store.
func NewCalendarStore() *CalendarStore {
	return &CalendarStore{
		data: make(map[domain.CalendarID]*storage.Calendar),
	}
}

// Onboard records id. Onboarding twice keeps the first record.
func (s *CalendarStore) Onboard(_ context.Context, id domain.CalendarID, at time.Time) (*storage.Calendar, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[id]
	if !exists {
		c = &storage.Calendar{ID: id, OnboardedAt: at}
		s.data[id] = c
	}

	calendarCopy := *c
	return &calendarCopy, nil
}

// Get retrieves a calendar by ID. Returns ErrNotFound if not onboarded.
func (s *CalendarStore) Get(_ context.Context, id domain.CalendarID) (*storage.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	calendarCopy := *c
	return &calendarCopy, nil
}

// List retrieves all onboarded calendars ordered by onboarding time ASC.
func (s *CalendarStore) List(_ context.Context) ([]*storage.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Calendar, 0, len(s.data))
	for _, c := range s.data {
		calendarCopy := *c
		result = append(result, &calendarCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OnboardedAt.Equal(result[j].OnboardedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].OnboardedAt.Before(result[j].OnboardedAt)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.CalendarStore = (*CalendarStore)(nil)
