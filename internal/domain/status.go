package domain

import "time"

// StatusRecord is the read-optimized execution snapshot for one event.
// It exists only for events that left the pending state.
type StatusRecord struct {
	EventID     string      `json:"eventId"`
	CalendarID  CalendarID  `json:"calendarId"`
	Status      EventStatus `json:"status"`
	Signature   string      `json:"signature,omitempty"`
	Error       string      `json:"error,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	ExplorerURL string      `json:"explorerUrl,omitempty"`
}

// NewStatusRecord derives the status record for a terminal event.
func NewStatusRecord(e *ScheduledEvent) StatusRecord {
	rec := StatusRecord{
		EventID:    e.ID,
		CalendarID: e.CalendarID,
		Status:     e.Status,
	}
	if e.ExecutedAt != nil {
		rec.Timestamp = *e.ExecutedAt
	}
	if e.Result != nil {
		rec.Signature = e.Result.Signature
		rec.ExplorerURL = e.Result.ExplorerURL
		if !e.Result.Success {
			rec.Error = e.Result.Reason
		}
	}
	return rec
}
