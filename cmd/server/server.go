package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"calendefi/internal/calendar"
	"calendefi/internal/calendar/ics"
	calmem "calendefi/internal/calendar/memory"
	"calendefi/internal/config"
	"calendefi/internal/domain"
	"calendefi/internal/execution"
	"calendefi/internal/ledger"
	"calendefi/internal/scheduler"
	"calendefi/internal/service"
	"calendefi/internal/solana"
	"calendefi/internal/storage"
	chstore "calendefi/internal/storage/clickhouse"
	"calendefi/internal/storage/memory"
	"calendefi/internal/storage/migrations"
	pgstore "calendefi/internal/storage/postgres"
	"calendefi/internal/wallet"
)

// Server holds all components of the service.
type Server struct {
	cfg    config.Config
	logger *zap.Logger

	scheduler *scheduler.Scheduler
	service   *service.Service
	startedAt time.Time

	// set by Run
	mu      sync.Mutex
	running bool
}

// components are the collaborators shared by scheduler and service.
type components struct {
	store     storage.EventStore
	calendars storage.CalendarStore
	journal   storage.Journal
	source    calendar.EventSource
	ledger    ledger.Ledger
}

func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	c := components{
		store:     memory.NewEventStore(),
		calendars: memory.NewCalendarStore(),
	}

	journal, closeJournal, err := createJournal(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeJournal)
	c.journal = journal

	explorer := ledger.Explorer{BaseURL: cfg.ExplorerURL, Cluster: cfg.Cluster}
	rpc := solana.NewHTTPClient(cfg.RPCURL, solana.WithMaxRetries(cfg.RPCMaxRetries))
	ledgerOpts := []solana.LedgerOption{
		solana.WithExplorer(explorer),
		solana.WithAllowOffCurve(cfg.AllowOffCurve),
		solana.WithConfirmTimeout(cfg.ConfirmTimeout),
		solana.WithLogger(logger.Named("ledger")),
	}
	if cfg.WSURL != "" {
		ws, err := solana.NewWSClient(ctx, cfg.WSURL, &solana.WSClientConfig{Logger: logger.Named("ws")})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect websocket: %w", err)
		}
		closers = append(closers, func() { ws.Close() })
		ledgerOpts = append(ledgerOpts, solana.WithWSClient(ws))
	}
	c.ledger = solana.NewLedger(rpc, ledgerOpts...)

	source, feeds, err := createSource(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	c.source = source

	srv, err := assemble(cfg, c, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	for _, id := range append(feeds, cfg.Calendars...) {
		if _, err := srv.service.Onboard(ctx, domain.CalendarID(id)); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("onboard %s: %w", id, err)
		}
	}

	return srv, cleanup, nil
}

// assemble wires engine, scheduler and service over c.
func assemble(cfg config.Config, c components, logger *zap.Logger) (*Server, error) {
	wallets := wallet.NewRegistry(c.ledger, wallet.WithSecret([]byte(cfg.WalletSecret)))
	engine := execution.NewEngine(wallets, c.ledger,
		execution.WithCallTimeout(cfg.CallTimeout),
		execution.WithLogger(logger.Named("engine")))

	sched, err := scheduler.New(scheduler.Options{
		Store:             c.store,
		Calendars:         c.calendars,
		Source:            c.source,
		Engine:            engine,
		Journal:           c.journal,
		Logger:            logger.Named("scheduler"),
		ExecutionInterval: cfg.ExecutionInterval,
		IngestionInterval: cfg.IngestionInterval,
		CallTimeout:       cfg.CallTimeout,
		MaxResults:        cfg.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	svc, err := service.New(service.Options{
		Store:     c.store,
		Calendars: c.calendars,
		Source:    c.source,
		Wallets:   wallets,
		Engine:    engine,
		Trigger:   sched,
		Explorer:  ledger.Explorer{BaseURL: cfg.ExplorerURL, Cluster: cfg.Cluster},
		Logger:    logger.Named("service"),
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:       cfg,
		logger:    logger,
		scheduler: sched,
		service:   svc,
		startedAt: time.Now(),
	}, nil
}

// createSource returns the ICS source when a feeds file is configured and the
// in-process source otherwise, plus the calendar ids the feeds declare.
func createSource(cfg config.Config, logger *zap.Logger) (calendar.EventSource, []string, error) {
	if cfg.FeedsFile == "" {
		logger.Info("using in-process calendar source")
		return calmem.NewSource(), nil, nil
	}

	defs, err := config.LoadFeeds(cfg.FeedsFile)
	if err != nil {
		return nil, nil, err
	}

	feeds := make([]ics.Feed, 0, len(defs))
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		feeds = append(feeds, ics.Feed{CalendarID: domain.CalendarID(d.CalendarID), URL: d.URL})
		ids = append(ids, d.CalendarID)
	}

	logger.Info("using ICS calendar source", zap.Int("feeds", len(feeds)))
	return ics.NewSource(feeds,
		ics.WithHTTPClient(&http.Client{Timeout: cfg.CallTimeout}),
		ics.WithHorizon(cfg.Horizon),
		ics.WithLogger(logger.Named("ics"))), ids, nil
}

// createJournal opens the configured journal backend and applies its schema.
func createJournal(ctx context.Context, cfg config.Config) (storage.Journal, func(), error) {
	switch cfg.Journal {
	case config.JournalNone:
		return nil, func() {}, nil

	case config.JournalPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pgstore.NewJournal(pool), pool.Close, nil

	case config.JournalClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		return chstore.NewJournal(conn), func() { conn.Close() }, nil

	default:
		return memory.NewJournal(), func() {}, nil
	}
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or either fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server", zap.String("http_addr", s.cfg.HTTPAddr))

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create error channel for goroutines
	errCh := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.scheduler.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()

	return runErr
}
