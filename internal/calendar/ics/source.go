package ics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"calendefi/internal/calendar"
	"calendefi/internal/domain"
)

// DefaultHorizon is how far ahead recurring events are expanded.
const DefaultHorizon = 30 * 24 * time.Hour

// Feed binds a calendar identity to an ICS URL.
type Feed struct {
	CalendarID domain.CalendarID
	URL        string
}

// Source implements calendar.EventSource over ICS feeds. Feeds are
// read-only: Create and AnnotateOutcome return calendar.ErrReadOnly.
type Source struct {
	feeds   map[domain.CalendarID]string
	fetcher *fetcher
	horizon time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures Source.
type Option func(*sourceOptions)

type sourceOptions struct {
	client  *http.Client
	horizon time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// WithHTTPClient sets the client used to download feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(o *sourceOptions) {
		o.client = c
	}
}

// WithHorizon sets the look-ahead window for recurrence expansion.
func WithHorizon(d time.Duration) Option {
	return func(o *sourceOptions) {
		o.horizon = d
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *sourceOptions) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *sourceOptions) {
		o.logger = l
	}
}

// NewSource creates an ICS source for the given feeds.
func NewSource(feeds []Feed, opts ...Option) *Source {
	o := sourceOptions{
		client:  &http.Client{Timeout: DefaultFetchTimeout},
		horizon: DefaultHorizon,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := make(map[domain.CalendarID]string, len(feeds))
	for _, f := range feeds {
		m[f.CalendarID] = f.URL
	}

	return &Source{
		feeds:   m,
		fetcher: newFetcher(o.client, o.logger),
		horizon: o.horizon,
		now:     o.now,
		logger:  o.logger,
	}
}

// ListUpcoming returns at most max events that have not ended within the horizon.
func (s *Source) ListUpcoming(ctx context.Context, id domain.CalendarID, max int) ([]calendar.Event, error) {
	vevents, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events := expand(vevents, now, now.Add(s.horizon), s.logger)

	if max > 0 && len(events) > max {
		events = events[:max]
	}
	return events, nil
}

// Create is not supported by ICS feeds.
func (s *Source) Create(_ context.Context, _ domain.CalendarID, _, _ string, _, _ time.Time) (*calendar.Event, error) {
	return nil, calendar.ErrReadOnly
}

// AnnotateOutcome is not supported by ICS feeds.
func (s *Source) AnnotateOutcome(_ context.Context, _ domain.CalendarID, _ string, _ calendar.Annotation) error {
	return calendar.ErrReadOnly
}

// Verify checks that a feed is configured for id and parses.
func (s *Source) Verify(ctx context.Context, id domain.CalendarID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Source) load(ctx context.Context, id domain.CalendarID) ([]vevent, error) {
	url, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("%w: no feed for %s", calendar.ErrNotFound, id)
	}

	body, err := s.fetcher.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: %w", id, err)
	}

	vevents, err := parseFeed(body, s.logger)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: %w", id, err)
	}
	return vevents, nil
}

// Verify interface compliance at compile time.
var (
	_ calendar.EventSource = (*Source)(nil)
	_ calendar.Verifier    = (*Source)(nil)
)
