package domain

import "time"

// JournalEntry is an append-only audit record of a recorded outcome.
// Corresponds to the execution_journal table.
type JournalEntry struct {
	EventID     string
	CalendarID  CalendarID
	Title       string
	IntentKind  IntentKind
	Amount      string // decimal string, empty for unrecognized intents
	Token       string
	Recipient   string
	Status      EventStatus
	Signature   string
	ExplorerURL string
	Reason      string
	Provenance  Provenance
	ScheduledAt time.Time
	RecordedAt  time.Time
}

// NewJournalEntry builds the journal entry for a terminal event.
func NewJournalEntry(e *ScheduledEvent) JournalEntry {
	entry := JournalEntry{
		EventID:     e.ID,
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		IntentKind:  e.Intent.Kind,
		Token:       e.Intent.Token,
		Recipient:   e.Intent.Recipient,
		Status:      e.Status,
		Provenance:  e.Provenance,
		ScheduledAt: e.StartTime,
	}
	if e.Intent.IsRecognized() {
		entry.Amount = e.Intent.Amount.String()
	}
	if e.Intent.Kind == IntentSwap {
		entry.Token = e.Intent.FromToken
	}
	if e.ExecutedAt != nil {
		entry.RecordedAt = *e.ExecutedAt
	}
	if e.Result != nil {
		entry.Signature = e.Result.Signature
		entry.ExplorerURL = e.Result.ExplorerURL
		entry.Reason = e.Result.Reason
	}
	return entry
}
