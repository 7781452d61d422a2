// Package status exposes read-only views of execution results.
package status

import (
	"context"
	"errors"
	"fmt"

	"calendefi/internal/domain"
	"calendefi/internal/storage"
)

// Publisher answers status queries from the event store. It never mutates
// state and keeps no cache of its own.
type Publisher struct {
	store storage.EventStore
}

// NewPublisher creates a publisher reading from store.
func NewPublisher(store storage.EventStore) *Publisher {
	return &Publisher{store: store}
}

// StatusOf returns the status record of an event. Events that are unknown
// or still pending have no record; both return storage.ErrNotFound.
func (p *Publisher) StatusOf(ctx context.Context, eventID string) (*domain.StatusRecord, error) {
	rec, err := p.store.StatusOf(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", eventID, err)
	}
	return rec, nil
}

// StatusesFor returns the status records of a calendar keyed by event id.
// The map is empty, never nil, when nothing has executed yet.
func (p *Publisher) StatusesFor(ctx context.Context, id domain.CalendarID) (map[string]domain.StatusRecord, error) {
	recs, err := p.store.StatusesByCalendar(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("statuses for %s: %w", id, err)
	}
	if recs == nil {
		recs = make(map[string]domain.StatusRecord)
	}
	return recs, nil
}

// Summary counts a calendar's events by status.
type Summary struct {
	CalendarID domain.CalendarID `json:"calendarId"`
	Pending    int               `json:"pending"`
	Executed   int               `json:"executed"`
	Failed     int               `json:"failed"`
}

// Total returns the number of events counted.
func (s Summary) Total() int {
	return s.Pending + s.Executed + s.Failed
}

// SummaryFor counts the events of a calendar by status.
func (p *Publisher) SummaryFor(ctx context.Context, id domain.CalendarID) (Summary, error) {
	sum := Summary{CalendarID: id}

	events, err := p.store.ListByCalendar(ctx, id)
	if err != nil {
		return sum, fmt.Errorf("list events of %s: %w", id, err)
	}
	for _, ev := range events {
		switch ev.Status {
		case domain.StatusPending:
			sum.Pending++
		case domain.StatusExecuted:
			sum.Executed++
		case domain.StatusFailed:
			sum.Failed++
		}
	}
	return sum, nil
}

// IsPending reports whether the event exists and has not executed yet.
func (p *Publisher) IsPending(ctx context.Context, eventID string) (bool, error) {
	ev, err := p.store.Get(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ev.Status == domain.StatusPending, nil
}
