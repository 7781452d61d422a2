package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"calendefi/internal/domain"
	"calendefi/internal/ledger"
)

// Default confirmation settings.
const (
	DefaultConfirmTimeout = 40 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// lamportExp converts between SOL and lamports.
const lamportExp = 9

// Ledger implements ledger.Ledger on top of the JSON-RPC and WebSocket clients.
type Ledger struct {
	rpc            RPCClient
	ws             WSClient // optional; polling is used when nil
	explorer       ledger.Explorer
	allowOffCurve  bool
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// LedgerOption configures Ledger.
type LedgerOption func(*Ledger)

// WithWSClient confirms transfers through signature subscriptions.
func WithWSClient(ws WSClient) LedgerOption {
	return func(l *Ledger) {
		l.ws = ws
	}
}

// WithExplorer sets the explorer used for receipt links.
func WithExplorer(e ledger.Explorer) LedgerOption {
	return func(l *Ledger) {
		l.explorer = e
	}
}

// WithAllowOffCurve permits transfers to program derived addresses.
func WithAllowOffCurve(allow bool) LedgerOption {
	return func(l *Ledger) {
		l.allowOffCurve = allow
	}
}

// WithConfirmTimeout bounds the wait for confirmation.
func WithConfirmTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.confirmTimeout = d
	}
}

// WithPollInterval sets the getSignatureStatuses polling interval.
func WithPollInterval(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.pollInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// NewLedger creates a ledger backed by rpc.
func NewLedger(rpc RPCClient, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		rpc:            rpc,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetBalance returns the balance of address in SOL.
func (l *Ledger) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if _, err := ParsePublicKey(address); err != nil {
		return decimal.Zero, err
	}
	lamports, err := l.rpc.GetBalance(ctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: get balance: %v", ledger.ErrUnavailable, err)
	}
	return LamportsToSOL(lamports), nil
}

// SubmitTransfer signs and sends a native transfer and waits for confirmation.
func (l *Ledger) SubmitTransfer(ctx context.Context, from *domain.Wallet, to string, amount decimal.Decimal) (*ledger.Receipt, error) {
	lamports, err := SOLToLamports(amount)
	if err != nil {
		return nil, err
	}

	recipient, err := ParsePublicKey(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidRecipient, err)
	}
	if !l.allowOffCurve && !recipient.IsOnCurve() {
		return nil, fmt.Errorf("%w: %s is off the ed25519 curve", ledger.ErrInvalidRecipient, to)
	}
	if from == nil {
		return nil, fmt.Errorf("no sender wallet")
	}
	if to == from.Address {
		return nil, fmt.Errorf("%w: recipient is the sender", ledger.ErrInvalidRecipient)
	}

	blockhash, err := l.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, l.wrapRPC("get latest blockhash", err)
	}

	tx, err := BuildTransfer(TransferParams{
		From:            from.PrivateKey,
		To:              recipient,
		Lamports:        lamports,
		RecentBlockhash: blockhash.Hash,
	})
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}

	// Subscribe before sending so a fast confirmation is not missed
	var notifications <-chan SignatureNotification
	if l.ws != nil {
		notifications, err = l.ws.SubscribeSignature(ctx, tx.Signature)
		if err != nil {
			l.logger.Warn("signature subscribe failed, polling instead",
				zap.String("signature", tx.Signature), zap.Error(err))
			notifications = nil
		} else {
			defer l.unsubscribe(tx.Signature)
		}
	}

	sig, err := l.rpc.SendTransaction(ctx, tx.Raw)
	if err != nil {
		return nil, l.wrapRPC("send transaction", err)
	}

	if err := l.confirm(ctx, sig, notifications); err != nil {
		return nil, err
	}

	return &ledger.Receipt{
		Signature:   sig,
		ExplorerURL: l.explorer.TxURL(sig),
	}, nil
}

// confirm waits until sig reaches confirmed commitment.
func (l *Ledger) confirm(ctx context.Context, sig string, notifications <-chan SignatureNotification) error {
	ctx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				// Client closed; keep polling
				notifications = nil
				continue
			}
			if n.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, n.Err)
			}
			return nil
		case <-ticker.C:
			statuses, err := l.rpc.GetSignatureStatuses(ctx, []string{sig})
			if err != nil {
				l.logger.Debug("signature status poll failed", zap.String("signature", sig), zap.Error(err))
				continue
			}
			if len(statuses) == 0 || statuses[0] == nil {
				continue
			}
			if statuses[0].Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, statuses[0].Err)
			}
			if statuses[0].IsConfirmed() {
				return nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s after %s", ledger.ErrConfirmationTimeout, sig, l.confirmTimeout)
			}
			return ctx.Err()
		}
	}
}

// unsubscribe releases the signature subscription once confirmation is over.
func (l *Ledger) unsubscribe(sig string) {
	if err := l.ws.Unsubscribe(sig); err != nil {
		l.logger.Debug("signature unsubscribe failed", zap.String("signature", sig), zap.Error(err))
	}
}

// wrapRPC marks transport failures as unavailable; node rejections pass through.
func (l *Ledger) wrapRPC(op string, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, op, err)
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportExp)
}

// SOLToLamports converts a positive SOL amount to lamports. Amounts finer
// than one lamport are rejected rather than rounded.
func SOLToLamports(amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s SOL is not positive", ledger.ErrInvalidAmount, amount)
	}
	lamports := amount.Shift(lamportExp)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("%w: %s SOL is finer than one lamport", ledger.ErrInvalidAmount, amount)
	}
	bi := lamports.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %s SOL overflows lamports", ledger.ErrInvalidAmount, amount)
	}
	return bi.Uint64(), nil
}

// Verify interface compliance at compile time.
var _ ledger.Ledger = (*Ledger)(nil)
