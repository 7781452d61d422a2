// Package execution turns a scheduled event into a ledger transfer.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"calendefi/internal/domain"
	"calendefi/internal/ledger"
)

// ReasonUnsupported is the failure reason for intents the engine cannot execute.
const ReasonUnsupported = "unsupported"

// DefaultCallTimeout bounds a single ledger call including confirmation.
const DefaultCallTimeout = 45 * time.Second

// ErrUnsupportedIntent is returned for intents other than native transfers.
var ErrUnsupportedIntent = errors.New("unsupported intent")

// WalletProvider hands out the wallet owned by a calendar.
type WalletProvider interface {
	WalletFor(id domain.CalendarID) *domain.Wallet
}

// Engine executes intents against a ledger. It never retries; a failed
// call becomes a failed outcome.
type Engine struct {
	wallets     WalletProvider
	ledger      ledger.Ledger
	callTimeout time.Duration
	logger      *zap.Logger
}

// Option configures Engine.
type Option func(*Engine)

// WithCallTimeout sets the per-call ledger timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine.
func NewEngine(wallets WalletProvider, l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		wallets:     wallets,
		ledger:      l,
		callTimeout: DefaultCallTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether the intent is a transfer of the native token.
func Supports(i domain.Intent) bool {
	return i.Kind == domain.IntentTransfer && strings.EqualFold(i.Token, ledger.NativeToken)
}

// Check returns ErrUnsupportedIntent for intents the engine will not execute.
func Check(i domain.Intent) error {
	if !Supports(i) {
		return fmt.Errorf("%w: %s", ErrUnsupportedIntent, i)
	}
	return nil
}

// Execute runs the event's intent and returns its outcome. Unsupported
// intents fail without touching the ledger.
func (e *Engine) Execute(ctx context.Context, ev *domain.ScheduledEvent) domain.Outcome {
	if !Supports(ev.Intent) {
		e.logger.Info("intent not executable",
			zap.String("event_id", ev.ID),
			zap.String("calendar_id", ev.CalendarID.String()),
			zap.Stringer("intent", ev.Intent))
		return domain.Failed(ReasonUnsupported)
	}

	receipt, err := e.Transfer(ctx, ev.CalendarID, ev.Intent)
	if err != nil {
		e.logger.Warn("transfer failed",
			zap.String("event_id", ev.ID),
			zap.String("calendar_id", ev.CalendarID.String()),
			zap.Error(err))
		return domain.Failed(err.Error())
	}

	e.logger.Info("transfer confirmed",
		zap.String("event_id", ev.ID),
		zap.String("calendar_id", ev.CalendarID.String()),
		zap.String("signature", receipt.Signature))
	return domain.Succeeded(receipt.Signature, receipt.ExplorerURL)
}

// Transfer submits a native transfer from the calendar's wallet.
func (e *Engine) Transfer(ctx context.Context, id domain.CalendarID, i domain.Intent) (*ledger.Receipt, error) {
	if err := Check(i); err != nil {
		return nil, err
	}
	if e.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger configured", ledger.ErrUnavailable)
	}

	w := e.wallets.WalletFor(id)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	return e.ledger.SubmitTransfer(callCtx, w, i.Recipient, i.Amount)
}
