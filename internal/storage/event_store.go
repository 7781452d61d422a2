package storage

import (
	"context"
	"time"

	"calendefi/internal/domain"
)

// EventStore owns scheduled events and their execution status index.
// InsertIfAbsent and Transition are the only mutators; both are atomic
// per event id.
type EventStore interface {
	// InsertIfAbsent stores e unless an event with the same ID exists.
	// Returns false, nil when the ID was already present; the stored event
	// is left untouched.
	InsertIfAbsent(ctx context.Context, e *domain.ScheduledEvent) (bool, error)

	// Get retrieves an event by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, eventID string) (*domain.ScheduledEvent, error)

	// ListByCalendar retrieves all events of a calendar, ordered by start time ASC.
	ListByCalendar(ctx context.Context, calendarID domain.CalendarID) ([]*domain.ScheduledEvent, error)

	// ListDue retrieves pending events with start time <= now, ordered by start time ASC.
	ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduledEvent, error)

	// Transition moves a pending event to the terminal status implied by
	// outcome and records the result and time. Returns ErrAlreadyTerminal
	// if the event is not pending, ErrNotFound if not exists.
	Transition(ctx context.Context, eventID string, outcome domain.Outcome, at time.Time) (*domain.ScheduledEvent, error)

	// StatusOf retrieves the status record of an event. Returns ErrNotFound
	// if the event has not left the pending state.
	StatusOf(ctx context.Context, eventID string) (*domain.StatusRecord, error)

	// StatusesByCalendar retrieves all status records of a calendar keyed by event ID.
	StatusesByCalendar(ctx context.Context, calendarID domain.CalendarID) (map[string]domain.StatusRecord, error)
}

// Calendar is an onboarded scheduling domain.
type Calendar struct {
	ID          domain.CalendarID
	OnboardedAt time.Time
}

// CalendarStore records onboarded calendars for the ingestion loop.
type CalendarStore interface {
	// Onboard records id. Onboarding twice keeps the first record.
	Onboard(ctx context.Context, id domain.CalendarID, at time.Time) (*Calendar, error)

	// Get retrieves a calendar by ID. Returns ErrNotFound if not onboarded.
	Get(ctx context.Context, id domain.CalendarID) (*Calendar, error)

	// List retrieves all onboarded calendars ordered by onboarding time ASC.
	List(ctx context.Context) ([]*Calendar, error)
}

// Journal is an append-only audit log of recorded outcomes. It is never
// read back to rebuild EventStore state.
type Journal interface {
	// Append adds an entry. Returns ErrDuplicateKey if the event was already journaled.
	Append(ctx context.Context, entry *domain.JournalEntry) error

	// GetByCalendar retrieves entries of a calendar ordered by recorded time ASC.
	GetByCalendar(ctx context.Context, calendarID domain.CalendarID) ([]*domain.JournalEntry, error)
}
