// Package scheduler drives ingestion of provider events and execution of
// due events on two independent periodic loops.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
	"calendefi/internal/execution"
	"calendefi/internal/intent"
	"calendefi/internal/observability"
	"calendefi/internal/storage"
)

// Loop names used in logs and metrics.
const (
	LoopExecution = "execution"
	LoopIngestion = "ingestion"
)

// Defaults.
const (
	DefaultExecutionInterval = 30 * time.Second
	DefaultIngestionInterval = 60 * time.Second
	DefaultMaxResults        = 20
)

// ErrTickInProgress is returned when a loop is asked to run while its
// previous tick has not finished.
var ErrTickInProgress = errors.New("tick already in progress")

// Executor runs a scheduled event.
type Executor interface {
	Execute(ctx context.Context, ev *domain.ScheduledEvent) domain.Outcome
}

// Options configures Scheduler.
type Options struct {
	Store     storage.EventStore    // required
	Calendars storage.CalendarStore // required
	Source    calendar.EventSource  // required
	Engine    Executor              // required
	Journal   storage.Journal       // optional audit log

	Logger *zap.Logger

	ExecutionInterval time.Duration
	IngestionInterval time.Duration
	CallTimeout       time.Duration // bounds each provider call
	MaxResults        int           // events fetched per calendar per tick

	Clock func() time.Time
}

// ExecutionStats summarizes one execution tick.
type ExecutionStats struct {
	Due      int
	Executed int
	Failed   int
	Skipped  int // already terminal or left pending on shutdown
}

// IngestionStats summarizes one ingestion tick.
type IngestionStats struct {
	Calendars int
	Fetched   int
	Inserted  int
	Discarded int
	Errors    int
}

// Scheduler owns the execution and ingestion loops. Each loop is
// single-flight; the two loops may run concurrently.
type Scheduler struct {
	opts   Options
	logger *zap.Logger

	executing atomic.Bool
	ingesting atomic.Bool
}

// New creates a scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Store == nil || opts.Calendars == nil || opts.Source == nil || opts.Engine == nil {
		return nil, errors.New("scheduler: store, calendars, source and engine are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ExecutionInterval <= 0 {
		opts.ExecutionInterval = DefaultExecutionInterval
	}
	if opts.IngestionInterval <= 0 {
		opts.IngestionInterval = DefaultIngestionInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = execution.DefaultCallTimeout
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Scheduler{
		opts:   opts,
		logger: opts.Logger,
	}, nil
}

// Run starts both loops, runs each once immediately and blocks until ctx is
// cancelled and in-flight ticks have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		zap.Duration("execution_interval", s.opts.ExecutionInterval),
		zap.Duration("ingestion_interval", s.opts.IngestionInterval))

	cronLog := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	executionJob := func() { s.RunExecutionTick(ctx) }
	ingestionJob := func() { s.RunIngestionTick(ctx) }

	if _, err := c.AddFunc(every(s.opts.ExecutionInterval), executionJob); err != nil {
		return fmt.Errorf("schedule execution loop: %w", err)
	}
	if _, err := c.AddFunc(every(s.opts.IngestionInterval), ingestionJob); err != nil {
		return fmt.Errorf("schedule ingestion loop: %w", err)
	}

	// Run immediately on start
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ingestionJob()
	}()
	go func() {
		defer wg.Done()
		executionJob()
	}()

	c.Start()
	<-ctx.Done()

	s.logger.Info("stopping scheduler")
	<-c.Stop().Done()
	wg.Wait()
	return ctx.Err()
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// RunExecutionTick executes every due pending event once. It returns
// ErrTickInProgress if a previous execution tick is still running.
func (s *Scheduler) RunExecutionTick(ctx context.Context) (ExecutionStats, error) {
	var stats ExecutionStats

	if !s.executing.CompareAndSwap(false, true) {
		s.logger.Debug("execution tick already running, skipping", zap.String("loop", LoopExecution))
		observability.RecordTickSkipped(LoopExecution)
		return stats, ErrTickInProgress
	}
	defer s.executing.Store(false)

	start := time.Now()
	status := "ok"
	defer func() {
		observability.RecordTick(LoopExecution, status, time.Since(start).Seconds(), s.opts.Clock().Unix())
	}()

	due, err := s.opts.Store.ListDue(ctx, s.opts.Clock())
	if err != nil {
		status = "error"
		s.logger.Error("list due events failed", zap.String("loop", LoopExecution), zap.Error(err))
		return stats, fmt.Errorf("list due events: %w", err)
	}
	stats.Due = len(due)
	observability.UpdateDueEvents(len(due))

	for _, ev := range due {
		if ctx.Err() != nil {
			stats.Skipped += len(due) - stats.Executed - stats.Failed - stats.Skipped
			break
		}

		switch s.executeOne(ctx, ev) {
		case domain.StatusExecuted:
			stats.Executed++
		case domain.StatusFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
	}

	if stats.Due > 0 {
		s.logger.Info("execution tick completed",
			zap.String("loop", LoopExecution),
			zap.Int("due", stats.Due),
			zap.Int("executed", stats.Executed),
			zap.Int("failed", stats.Failed),
			zap.Int("skipped", stats.Skipped),
			zap.Duration("duration", time.Since(start)))
	}
	return stats, ctx.Err()
}

// executeOne executes and records a single event. It returns the recorded
// status, or pending when nothing was recorded.
func (s *Scheduler) executeOne(ctx context.Context, ev *domain.ScheduledEvent) domain.EventStatus {
	log := s.logger.With(
		zap.String("loop", LoopExecution),
		zap.String("event_id", ev.ID),
		zap.String("calendar_id", ev.CalendarID.String()))

	start := time.Now()
	outcome := s.opts.Engine.Execute(ctx, ev)

	// A cancelled tick records nothing; the event stays pending
	if ctx.Err() != nil {
		log.Warn("shutdown during execution, leaving event pending")
		return domain.StatusPending
	}

	updated, err := s.opts.Store.Transition(ctx, ev.ID, outcome, s.opts.Clock())
	if errors.Is(err, storage.ErrAlreadyTerminal) {
		log.Info("event already terminal, skipping")
		return domain.StatusPending
	}
	if err != nil {
		log.Error("record outcome failed", zap.Error(err))
		return domain.StatusPending
	}

	observability.RecordExecution(updated.Status.String(), time.Since(start).Seconds())
	if outcome.Success {
		log.Info("event executed", zap.String("signature", outcome.Signature))
	} else {
		log.Warn("event failed", zap.String("reason", outcome.Reason))
	}

	s.afterTransition(ctx, updated)
	return updated.Status
}

// afterTransition annotates the provider event and appends to the journal.
// Both are best-effort.
func (s *Scheduler) afterTransition(ctx context.Context, ev *domain.ScheduledEvent) {
	log := s.logger.With(zap.String("event_id", ev.ID), zap.String("calendar_id", ev.CalendarID.String()))

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	err := s.opts.Source.AnnotateOutcome(callCtx, ev.CalendarID, ev.ID, calendar.NewAnnotation(ev, s.opts.Clock()))
	cancel()
	if err != nil && !errors.Is(err, calendar.ErrReadOnly) {
		observability.RecordAnnotationError()
		log.Warn("annotate provider event failed", zap.Error(err))
	}

	if s.opts.Journal == nil {
		return
	}
	entry := domain.NewJournalEntry(ev)
	if err := s.opts.Journal.Append(ctx, &entry); err != nil {
		observability.RecordJournalError()
		log.Warn("journal append failed", zap.Error(err))
	}
}

// RunIngestionTick fetches upcoming events for every onboarded calendar and
// inserts unseen executable ones as pending. It returns ErrTickInProgress if
// a previous ingestion tick or CheckNow is still running.
func (s *Scheduler) RunIngestionTick(ctx context.Context) (IngestionStats, error) {
	var stats IngestionStats

	if !s.ingesting.CompareAndSwap(false, true) {
		s.logger.Debug("ingestion tick already running, skipping", zap.String("loop", LoopIngestion))
		observability.RecordTickSkipped(LoopIngestion)
		return stats, ErrTickInProgress
	}
	defer s.ingesting.Store(false)

	start := time.Now()
	status := "ok"
	defer func() {
		observability.RecordTick(LoopIngestion, status, time.Since(start).Seconds(), s.opts.Clock().Unix())
	}()

	calendars, err := s.opts.Calendars.List(ctx)
	if err != nil {
		status = "error"
		s.logger.Error("list calendars failed", zap.String("loop", LoopIngestion), zap.Error(err))
		return stats, fmt.Errorf("list calendars: %w", err)
	}

	for _, c := range calendars {
		if ctx.Err() != nil {
			break
		}
		stats.Calendars++
		s.ingestCalendar(ctx, c.ID, &stats)
	}

	if stats.Errors > 0 {
		status = "partial"
	}
	if stats.Inserted > 0 || stats.Errors > 0 {
		s.logger.Info("ingestion tick completed",
			zap.String("loop", LoopIngestion),
			zap.Int("calendars", stats.Calendars),
			zap.Int("fetched", stats.Fetched),
			zap.Int("inserted", stats.Inserted),
			zap.Int("discarded", stats.Discarded),
			zap.Int("errors", stats.Errors),
			zap.Duration("duration", time.Since(start)))
	}
	return stats, ctx.Err()
}

// CheckNow ingests a single calendar immediately. It shares the ingestion
// loop's single-flight guard.
func (s *Scheduler) CheckNow(ctx context.Context, id domain.CalendarID) (IngestionStats, error) {
	var stats IngestionStats

	if !s.ingesting.CompareAndSwap(false, true) {
		return stats, ErrTickInProgress
	}
	defer s.ingesting.Store(false)

	stats.Calendars = 1
	if err := s.ingestCalendar(ctx, id, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// ingestCalendar pulls one calendar. Fetch errors are counted and logged;
// the returned error is only used by CheckNow.
func (s *Scheduler) ingestCalendar(ctx context.Context, id domain.CalendarID, stats *IngestionStats) error {
	log := s.logger.With(zap.String("loop", LoopIngestion), zap.String("calendar_id", id.String()))

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	events, err := s.opts.Source.ListUpcoming(callCtx, id, s.opts.MaxResults)
	cancel()
	if err != nil {
		stats.Errors++
		observability.RecordSourceError()
		log.Warn("fetch upcoming events failed", zap.Error(err))
		return fmt.Errorf("fetch upcoming events for %s: %w", id, err)
	}
	stats.Fetched += len(events)

	for _, ce := range events {
		if _, err := s.opts.Store.Get(ctx, ce.ID); err == nil {
			continue // seen
		}

		in := intent.Parse(ce.Title, ce.Description)
		if !execution.Supports(in) {
			stats.Discarded++
			reason := "unsupported"
			if !in.IsRecognized() {
				reason = "unrecognized"
			}
			observability.RecordDiscarded(reason)
			continue
		}

		inserted, err := s.opts.Store.InsertIfAbsent(ctx, &domain.ScheduledEvent{
			ID:          ce.ID,
			CalendarID:  id,
			Title:       ce.Title,
			Description: ce.Description,
			StartTime:   ce.Start,
			EndTime:     ce.End,
			Intent:      in,
			Status:      domain.StatusPending,
			CreatedAt:   s.opts.Clock(),
			Provenance:  domain.ProvenanceProvider,
		})
		if err != nil {
			stats.Errors++
			log.Error("insert event failed", zap.String("event_id", ce.ID), zap.Error(err))
			continue
		}
		if inserted {
			stats.Inserted++
			observability.RecordIngested(domain.ProvenanceProvider.String())
			log.Info("scheduled event",
				zap.String("event_id", ce.ID),
				zap.Time("start", ce.Start),
				zap.Stringer("intent", in))
		}
	}
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
