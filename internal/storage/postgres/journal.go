package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
	"calendefi/internal/observability"
	"calendefi/internal/storage"
)

// Journal implements storage.Journal using PostgreSQL.
type Journal struct {
	pool *Pool
}

// NewJournal creates a new Journal.
func NewJournal(pool *Pool) *Journal {
	return &Journal{pool: pool}
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
		observability.RecordDBQuery("postgres", "journal_append", time.Since(start).Seconds(), err)
	}()

	query := `
		INSERT INTO execution_journal (
			event_id, calendar_id, title, intent_kind, amount, token, recipient,
			status, signature, explorer_url, reason, provenance,
			scheduled_at, recorded_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, '')::numeric, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)
	`

	_, err = j.pool.Exec(ctx, query,
		e.EventID, string(e.CalendarID), e.Title, string(e.IntentKind), e.Amount, e.Token, e.Recipient,
		string(e.Status), e.Signature, e.ExplorerURL, e.Reason, string(e.Provenance),
		e.ScheduledAt.UTC(), e.RecordedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// GetByCalendar retrieves entries of a calendar ordered by recorded_at ASC.
func (j *Journal) GetByCalendar(ctx context.Context, calendarID domain.CalendarID) (_ []*domain.JournalEntry, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "journal_by_calendar", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			event_id, calendar_id, title, intent_kind, COALESCE(amount::text, ''), token, recipient,
			status, signature, explorer_url, reason, provenance,
			scheduled_at, recorded_at
		FROM execution_journal
		WHERE calendar_id = $1
		ORDER BY recorded_at ASC, event_id ASC
	`

	rows, err := j.pool.Query(ctx, query, string(calendarID))
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
		e.Amount = normalizeAmount(e.Amount)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return result, nil
}

// normalizeAmount strips the NUMERIC scale padding ("0.500000000" -> "0.5").
func normalizeAmount(s string) string {
	if s == "" {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.String()
}
