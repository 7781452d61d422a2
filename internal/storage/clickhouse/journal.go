package clickhouse

import (
	"context"
	"fmt"
	"time"

	"calendefi/internal/domain"
	"calendefi/internal/observability"
	"calendefi/internal/storage"
)

// Journal implements storage.Journal using ClickHouse.
type Journal struct {
	conn *Conn
}

// NewJournal creates a new Journal.
func NewJournal(conn *Conn) *Journal {
	return &Journal{conn: conn}
}

// Compile-time interface check.
var _ storage.Journal = (*Journal)(nil)

// Append adds an entry. Returns ErrDuplicateKey if event_id exists.
func (j *Journal) Append(ctx context.Context, e *domain.JournalEntry) (err error) {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "journal_append", time.Since(start).Seconds(), err)
	}()

	// ReplacingMergeTree would collapse a replay; the journal is append-only.
	exists, err := j.exists(ctx, e.CalendarID, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO execution_journal (
			event_id, calendar_id, title, intent_kind, amount, token, recipient,
			status, signature, explorer_url, reason, provenance,
			scheduled_at, recorded_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?
		)
	`

	err = j.conn.Exec(ctx, query,
		e.EventID, string(e.CalendarID), e.Title, string(e.IntentKind), e.Amount, e.Token, e.Recipient,
		string(e.Status), e.Signature, e.ExplorerURL, e.Reason, string(e.Provenance),
		e.ScheduledAt.UTC(), e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// GetByCalendar retrieves entries of a calendar ordered by recorded_at ASC.
func (j *Journal) GetByCalendar(ctx context.Context, calendarID domain.CalendarID) (_ []*domain.JournalEntry, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "journal_by_calendar", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			event_id, calendar_id, title, intent_kind, amount, token, recipient,
			status, signature, explorer_url, reason, provenance,
			scheduled_at, recorded_at
		FROM execution_journal FINAL
		WHERE calendar_id = ?
		ORDER BY recorded_at ASC, event_id ASC
	`

	rows, err := j.conn.Query(ctx, query, string(calendarID))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var result []*domain.JournalEntry
	for rows.Next() {
		var (
			e                         domain.JournalEntry
			calID, kind, stat, origin string
		)
		if err := rows.Scan(
			&e.EventID, &calID, &e.Title, &kind, &e.Amount, &e.Token, &e.Recipient,
			&stat, &e.Signature, &e.ExplorerURL, &e.Reason, &origin,
			&e.ScheduledAt, &e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.CalendarID = domain.CalendarID(calID)
		e.IntentKind = domain.IntentKind(kind)
		e.Status = domain.EventStatus(stat)
		e.Provenance = domain.Provenance(origin)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return result, nil
}

// exists checks if the event was already journaled.
func (j *Journal) exists(ctx context.Context, calendarID domain.CalendarID, eventID string) (bool, error) {
	query := `
		SELECT count(*) FROM execution_journal FINAL
		WHERE calendar_id = ? AND event_id = ?
	`

	var count uint64
	if err := j.conn.QueryRow(ctx, query, string(calendarID), eventID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
