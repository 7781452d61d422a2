package domain

import "time"

// CalendarID identifies a scheduling domain, e.g. a calendar address.
// Each CalendarID owns exactly one wallet.
type CalendarID string

// String returns the string representation of CalendarID.
func (c CalendarID) String() string {
	return string(c)
}

// EventStatus is the lifecycle state of a ScheduledEvent.
type EventStatus string

const (
	StatusPending  EventStatus = "pending"
	StatusExecuted EventStatus = "executed"
	StatusFailed   EventStatus = "failed"
)

// String returns the string representation of EventStatus.
func (s EventStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s EventStatus) IsTerminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// Provenance records where a ScheduledEvent came from.
type Provenance string

const (
	ProvenanceLocal    Provenance = "local"    // created through this service
	ProvenanceProvider Provenance = "provider" // ingested from the calendar provider
)

// String returns the string representation of Provenance.
func (p Provenance) String() string {
	return string(p)
}

// ScheduledEvent is a calendar event bound to a transaction intent.
type ScheduledEvent struct {
	ID          string      // provider-assigned or locally generated
	CalendarID  CalendarID  // owning calendar
	Title       string      // event title as seen on the provider
	Description string      // event description
	StartTime   time.Time   // scheduled execution time
	EndTime     time.Time   // informational
	Intent      Intent      // parsed at insertion time
	Status      EventStatus // pending | executed | failed
	Result      *Outcome    // set on the first transition out of pending
	CreatedAt   time.Time   // insertion time
	ExecutedAt  *time.Time  // set on the first transition out of pending
	Provenance  Provenance  // local | provider
}

// Clone returns a deep copy so callers never share pointers with a store.
func (e *ScheduledEvent) Clone() *ScheduledEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.Result != nil {
		r := *e.Result
		c.Result = &r
	}
	if e.ExecutedAt != nil {
		t := *e.ExecutedAt
		c.ExecutedAt = &t
	}
	return &c
}

// IsDue reports whether the event is pending and its start time has passed.
func (e *ScheduledEvent) IsDue(now time.Time) bool {
	return e.Status == StatusPending && !e.StartTime.After(now)
}
