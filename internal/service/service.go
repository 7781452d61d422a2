// Package service is the application surface consumed by the HTTP layer:
// onboarding, event creation, manual execution and status queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
	"calendefi/internal/execution"
	"calendefi/internal/intent"
	"calendefi/internal/ledger"
	"calendefi/internal/observability"
	"calendefi/internal/scheduler"
	"calendefi/internal/status"
	"calendefi/internal/storage"
	"calendefi/internal/wallet"
)

var (
	// ErrInvalidCalendarID is returned for ids that do not look like a
	// calendar address.
	ErrInvalidCalendarID = errors.New("invalid calendar id")

	// ErrInvalidRequest is returned when required fields are missing.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoIntent is returned by ExecuteNow when no transfer could be
	// derived from the request.
	ErrNoIntent = errors.New(`no transaction found: use "Send X SOL to <address>" or provide recipient and amount`)
)

// IngestionTrigger runs ingestion for one calendar on demand.
type IngestionTrigger interface {
	CheckNow(ctx context.Context, id domain.CalendarID) (scheduler.IngestionStats, error)
}

// Options configures Service.
type Options struct {
	Store     storage.EventStore    // required
	Calendars storage.CalendarStore // required
	Source    calendar.EventSource  // required
	Wallets   *wallet.Registry      // required
	Engine    *execution.Engine     // required
	Trigger   IngestionTrigger      // required
	Explorer  ledger.Explorer
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Service implements the exposed operations over the engine's state.
type Service struct {
	opts      Options
	logger    *zap.Logger
	publisher *status.Publisher
}

// New creates a service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Calendars == nil || opts.Source == nil ||
		opts.Wallets == nil || opts.Engine == nil || opts.Trigger == nil {
		return nil, errors.New("service: missing required dependency")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		opts:      opts,
		logger:    opts.Logger,
		publisher: status.NewPublisher(opts.Store),
	}, nil
}

func validateCalendarID(id domain.CalendarID) error {
	if !strings.Contains(string(id), "@") {
		return fmt.Errorf("%w: %q", ErrInvalidCalendarID, id)
	}
	return nil
}

// Onboard records a calendar for the ingestion loop. Sources that can
// verify access are asked first. Onboarding twice is a no-op.
func (s *Service) Onboard(ctx context.Context, id domain.CalendarID) (*storage.Calendar, error) {
	if err := validateCalendarID(id); err != nil {
		return nil, err
	}
	if v, ok := s.opts.Source.(calendar.Verifier); ok {
		if err := v.Verify(ctx, id); err != nil {
			return nil, fmt.Errorf("verify calendar %s: %w", id, err)
		}
	}

	c, err := s.opts.Calendars.Onboard(ctx, id, s.opts.Clock())
	if err != nil {
		return nil, fmt.Errorf("onboard calendar %s: %w", id, err)
	}
	s.logger.Info("calendar onboarded", zap.String("calendar_id", id.String()))
	return c, nil
}

// CheckNow runs ingestion for a calendar immediately.
func (s *Service) CheckNow(ctx context.Context, id domain.CalendarID) (scheduler.IngestionStats, error) {
	if id == "" {
		return scheduler.IngestionStats{}, fmt.Errorf("%w: calendar id is required", ErrInvalidRequest)
	}
	return s.opts.Trigger.CheckNow(ctx, id)
}

// UpcomingEvents lists the provider's upcoming events for a calendar.
func (s *Service) UpcomingEvents(ctx context.Context, id domain.CalendarID, max int) ([]calendar.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: calendar id is required", ErrInvalidRequest)
	}
	if max <= 0 {
		max = scheduler.DefaultMaxResults
	}
	return s.opts.Source.ListUpcoming(ctx, id, max)
}

// CreateEventRequest describes an event to create.
type CreateEventRequest struct {
	CalendarID  domain.CalendarID `json:"calendarId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Start       time.Time         `json:"startTime"`
	End         time.Time         `json:"endTime"`
}

// CreatedEvent is the result of CreateEvent.
type CreatedEvent struct {
	EventID   string        `json:"eventId"`
	Title     string        `json:"title"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Scheduled bool          `json:"scheduled"`
	Intent    domain.Intent `json:"intent"`
}

// CreateEvent creates the event at the provider and, when it carries a
// recognized intent, schedules it as pending. Read-only providers get a
// locally generated id and the event is only scheduled.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	if req.CalendarID == "" || req.Title == "" || req.Start.IsZero() || req.End.IsZero() {
		return nil, fmt.Errorf("%w: calendar id, title, start and end are required", ErrInvalidRequest)
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRequest)
	}

	ev, err := s.opts.Source.Create(ctx, req.CalendarID, req.Title, req.Description, req.Start, req.End)
	switch {
	case errors.Is(err, calendar.ErrReadOnly):
		ev = &calendar.Event{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			Start:       req.Start,
			End:         req.End,
		}
	case err != nil:
		return nil, fmt.Errorf("create event: %w", err)
	}

	out := &CreatedEvent{
		EventID: ev.ID,
		Title:   ev.Title,
		Start:   ev.Start,
		End:     ev.End,
		Intent:  intent.Parse(req.Title, req.Description),
	}
	if !out.Intent.IsRecognized() {
		return out, nil
	}

	inserted, err := s.opts.Store.InsertIfAbsent(ctx, &domain.ScheduledEvent{
		ID:          ev.ID,
		CalendarID:  req.CalendarID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.Start,
		EndTime:     req.End,
		Intent:      out.Intent,
		Status:      domain.StatusPending,
		CreatedAt:   s.opts.Clock(),
		Provenance:  domain.ProvenanceLocal,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule event %s: %w", ev.ID, err)
	}
	out.Scheduled = inserted
	if inserted {
		observability.RecordIngested(domain.ProvenanceLocal.String())
		s.logger.Info("scheduled event",
			zap.String("calendar_id", req.CalendarID.String()),
			zap.String("event_id", ev.ID),
			zap.Time("start", req.Start),
			zap.Stringer("intent", out.Intent))
	}
	return out, nil
}

// ExecuteRequest is an ad-hoc execution. Recipient and Amount are used only
// when neither title nor description carries a transfer.
type ExecuteRequest struct {
	EventID     string            `json:"eventId"`
	CalendarID  domain.CalendarID `json:"calendarId"`
	Title       string            `json:"eventTitle"`
	Description string            `json:"eventDescription"`
	Recipient   string            `json:"toAddress"`
	Amount      string            `json:"amount"`
}

// ExecuteResult is a confirmed ad-hoc transfer.
type ExecuteResult struct {
	Signature   string             `json:"signature"`
	ExplorerURL string             `json:"explorerUrl"`
	Status      domain.EventStatus `json:"status"`
}

// ExecuteNow submits the transfer described by req right away. The result
// is not recorded as a scheduled event; when EventID is set the provider
// event is annotated.
func (s *Service) ExecuteNow(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if req.CalendarID == "" || req.Title == "" {
		return nil, fmt.Errorf("%w: calendar id and event title are required", ErrInvalidRequest)
	}

	in := intent.Parse(req.Title, req.Description)
	if !in.IsRecognized() && req.Recipient != "" && req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount %q", ErrInvalidRequest, req.Amount)
		}
		in = domain.NewTransfer(amount, ledger.NativeToken, req.Recipient)
	}
	if !in.IsRecognized() {
		return nil, ErrNoIntent
	}

	receipt, err := s.opts.Engine.Transfer(ctx, req.CalendarID, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ad-hoc transfer confirmed",
		zap.String("calendar_id", req.CalendarID.String()),
		zap.String("event_id", req.EventID),
		zap.String("signature", receipt.Signature))

	if req.EventID != "" {
		err := s.opts.Source.AnnotateOutcome(ctx, req.CalendarID, req.EventID, calendar.Annotation{
			Status:      domain.StatusExecuted,
			Signature:   receipt.Signature,
			ExplorerURL: receipt.ExplorerURL,
			UpdatedAt:   s.opts.Clock(),
		})
		if err != nil && !errors.Is(err, calendar.ErrReadOnly) {
			observability.RecordAnnotationError()
			s.logger.Warn("annotate provider event failed",
				zap.String("event_id", req.EventID), zap.Error(err))
		}
	}

	return &ExecuteResult{
		Signature:   receipt.Signature,
		ExplorerURL: receipt.ExplorerURL,
		Status:      domain.StatusExecuted,
	}, nil
}

// WalletInfo describes a calendar's wallet.
type WalletInfo struct {
	CalendarID      domain.CalendarID `json:"calendarId"`
	Address         string            `json:"address"`
	Balance         string            `json:"balance"` // SOL, 4 decimal places
	BalanceLamports int64             `json:"balanceLamports"`
	ExplorerURL     string            `json:"explorerUrl"`
}

// WalletInfo returns the calendar's wallet address and balance.
func (s *Service) WalletInfo(ctx context.Context, id domain.CalendarID) (*WalletInfo, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: calendar id is required", ErrInvalidRequest)
	}

	w := s.opts.Wallets.WalletFor(id)
	bal, err := s.opts.Wallets.BalanceOf(ctx, w)
	if err != nil {
		return nil, err
	}
	return &WalletInfo{
		CalendarID:      id,
		Address:         w.Address,
		Balance:         bal.StringFixed(4),
		BalanceLamports: bal.Shift(9).Floor().IntPart(),
		ExplorerURL:     s.opts.Explorer.AddressURL(w.Address),
	}, nil
}

// EventSummary is the listing view of a scheduled event.
type EventSummary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	StartTime  time.Time          `json:"startTime"`
	Status     domain.EventStatus `json:"status"`
	Provenance domain.Provenance  `json:"source"`
	CreatedAt  time.Time          `json:"createdAt"`
	Result     *domain.Outcome    `json:"result,omitempty"`
}

func summarize(ev *domain.ScheduledEvent) EventSummary {
	return EventSummary{
		ID:         ev.ID,
		Title:      ev.Title,
		StartTime:  ev.StartTime,
		Status:     ev.Status,
		Provenance: ev.Provenance,
		CreatedAt:  ev.CreatedAt,
		Result:     ev.Result,
	}
}

// ScheduledEvents lists every event known for a calendar, by start time.
func (s *Service) ScheduledEvents(ctx context.Context, id domain.CalendarID) ([]EventSummary, error) {
	return s.listEvents(ctx, id, func(*domain.ScheduledEvent) bool { return true })
}

// PendingEvents lists the calendar's events still awaiting execution.
func (s *Service) PendingEvents(ctx context.Context, id domain.CalendarID) ([]EventSummary, error) {
	return s.listEvents(ctx, id, func(ev *domain.ScheduledEvent) bool {
		return ev.Status == domain.StatusPending
	})
}

func (s *Service) listEvents(ctx context.Context, id domain.CalendarID, keep func(*domain.ScheduledEvent) bool) ([]EventSummary, error) {
	events, err := s.opts.Store.ListByCalendar(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", id, err)
	}
	out := make([]EventSummary, 0, len(events))
	for _, ev := range events {
		if keep(ev) {
			out = append(out, summarize(ev))
		}
	}
	return out, nil
}

// StatusOf returns the status record of an executed or failed event.
func (s *Service) StatusOf(ctx context.Context, eventID string) (*domain.StatusRecord, error) {
	return s.publisher.StatusOf(ctx, eventID)
}

// StatusesFor returns a calendar's status records keyed by event id.
func (s *Service) StatusesFor(ctx context.Context, id domain.CalendarID) (map[string]domain.StatusRecord, error) {
	return s.publisher.StatusesFor(ctx, id)
}

// Summary counts a calendar's events by status.
func (s *Service) Summary(ctx context.Context, id domain.CalendarID) (status.Summary, error) {
	return s.publisher.SummaryFor(ctx, id)
}

// Calendars lists onboarded calendars.
func (s *Service) Calendars(ctx context.Context) ([]*storage.Calendar, error) {
	return s.opts.Calendars.List(ctx)
}
