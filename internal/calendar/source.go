// Package calendar defines the provider capability that supplies scheduled
// events and receives execution annotations.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calendefi/internal/domain"
)

var (
	// ErrNotFound is returned for unknown calendars or events.
	ErrNotFound = errors.New("calendar: not found")

	// ErrReadOnly is returned by sources that cannot write events.
	ErrReadOnly = errors.New("calendar: source is read-only")

	// ErrAccessDenied is returned when the calendar cannot be accessed.
	ErrAccessDenied = errors.New("calendar: access denied")
)

// Event is a provider event as fetched from the calendar.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Annotation is the outcome written back onto a provider event.
type Annotation struct {
	Status      domain.EventStatus
	Signature   string
	ExplorerURL string
	Reason      string
	UpdatedAt   time.Time
}

// NewAnnotation builds the annotation for a terminal event.
func NewAnnotation(e *domain.ScheduledEvent, at time.Time) Annotation {
	a := Annotation{Status: e.Status, UpdatedAt: at}
	if e.Result != nil {
		a.Signature = e.Result.Signature
		a.ExplorerURL = e.Result.ExplorerURL
		a.Reason = e.Result.Reason
	}
	return a
}

// EventSource is the calendar provider.
type EventSource interface {
	// ListUpcoming returns at most max events that have not ended yet,
	// ordered by start time.
	ListUpcoming(ctx context.Context, id domain.CalendarID, max int) ([]Event, error)

	// Create creates an event on the calendar.
	Create(ctx context.Context, id domain.CalendarID, title, description string, start, end time.Time) (*Event, error)

	// AnnotateOutcome records the execution outcome on the provider event.
	AnnotateOutcome(ctx context.Context, id domain.CalendarID, eventID string, a Annotation) error
}

// Verifier is implemented by sources that can check calendar access
// before onboarding.
type Verifier interface {
	Verify(ctx context.Context, id domain.CalendarID) error
}

// AppendAnnotation returns description with a status block appended.
func AppendAnnotation(description string, a Annotation) string {
	var b strings.Builder
	if description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")
	fmt.Fprintf(&b, "**Transaction Status:** %s\n", a.Status)
	if a.Signature != "" {
		fmt.Fprintf(&b, "**Signature:** %s\n", a.Signature)
	}
	if a.ExplorerURL != "" {
		fmt.Fprintf(&b, "**Explorer:** %s\n", a.ExplorerURL)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, "**Error:** %s\n", a.Reason)
	}
	fmt.Fprintf(&b, "**Updated:** %s", a.UpdatedAt.UTC().Format(time.RFC3339))
	return b.String()
}
