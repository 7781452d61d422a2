package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
	"calendefi/internal/ledger"
)

// ErrNoBalance is returned by GetBalance for unknown addresses.
var ErrNoBalance = errors.New("no balance recorded")

// Transfer records one SubmitTransfer call.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Ledger implements ledger.Ledger for testing.
type Ledger struct {
	mu        sync.Mutex
	Balances  map[string]decimal.Decimal
	Transfers []Transfer

	// SubmitFunc, when set, decides the result of SubmitTransfer.
	SubmitFunc func(ctx context.Context, from *domain.Wallet, to string, amount decimal.Decimal) (*ledger.Receipt, error)

	// BalanceErr, when set, is returned by GetBalance.
	BalanceErr error

	explorer ledger.Explorer
	seq      int
}

// NewLedger creates a stub ledger that confirms every transfer.
func NewLedger() *Ledger {
	return &Ledger{
		Balances: make(map[string]decimal.Decimal),
	}
}

// GetBalance returns the recorded balance for address.
func (l *Ledger) GetBalance(_ context.Context, address string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.BalanceErr != nil {
		return decimal.Zero, l.BalanceErr
	}
	b, ok := l.Balances[address]
	if !ok {
		return decimal.Zero, ErrNoBalance
	}
	return b, nil
}

// SubmitTransfer records the transfer and returns a generated signature
// unless SubmitFunc overrides the result.
func (l *Ledger) SubmitTransfer(ctx context.Context, from *domain.Wallet, to string, amount decimal.Decimal) (*ledger.Receipt, error) {
	l.mu.Lock()
	l.Transfers = append(l.Transfers, Transfer{From: from.Address, To: to, Amount: amount})
	l.seq++
	seq := l.seq
	fn := l.SubmitFunc
	l.mu.Unlock()

	if fn != nil {
		return fn(ctx, from, to, amount)
	}

	sig := fmt.Sprintf("stubsig%d", seq)
	return &ledger.Receipt{Signature: sig, ExplorerURL: l.explorer.TxURL(sig)}, nil
}

// SetBalance records a balance for address.
func (l *Ledger) SetBalance(address string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Balances[address] = amount
}

// Calls returns a copy of all recorded transfers.
func (l *Ledger) Calls() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.Transfers))
	copy(out, l.Transfers)
	return out
}

// Compile-time interface check.
var _ ledger.Ledger = (*Ledger)(nil)
