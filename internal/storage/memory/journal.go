package memory

import (
	"context"
	"sort"
	"sync"

	"calendefi/internal/domain"
	"calendefi/internal/storage"
)

// Journal is an in-memory implementation of storage.Journal.
type Journal struct {
	mu   sync.RWMutex
	data map[string]*domain.JournalEntry // keyed by event_id
}

// NewJournal creates a new in-memory journal.
func NewJournal() *Journal {
	return &Journal{
		data: make(map[string]*domain.JournalEntry),
	}
}

// Append adds an entry. Returns ErrDuplicateKey if the event was already journaled.
func (j *Journal) Append(_ context.Context, entry *domain.JournalEntry) error {
	if entry == nil || entry.EventID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.data[entry.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *entry
	j.data[entry.EventID] = &entryCopy
	return nil
}

// GetByCalendar retrieves entries of a calendar ordered by recorded time ASC.
func (j *Journal) GetByCalendar(_ context.Context, calendarID domain.CalendarID) ([]*domain.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range j.data {
		if e.CalendarID == calendarID {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].RecordedAt.Equal(result[b].RecordedAt) {
			return result[a].EventID < result[b].EventID
		}
		return result[a].RecordedAt.Before(result[b].RecordedAt)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.Journal = (*Journal)(nil)
