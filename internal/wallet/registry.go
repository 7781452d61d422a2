// Package wallet derives and caches the keypair owned by each calendar.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
	"calendefi/internal/ledger"
)

// Registry hands out one deterministic wallet per calendar.
//
// The seed is SHA-256(calendarID), or HMAC-SHA-256(secret, calendarID) when
// a derivation secret is configured. The same calendar therefore always maps
// to the same address for a given secret.
type Registry struct {
	ledger ledger.Ledger
	secret []byte

	mu      sync.Mutex
	entries map[domain.CalendarID]*entry
}

// entry serializes derivation for one calendar only.
type entry struct {
	once   sync.Once
	wallet *domain.Wallet
}

// Option configures Registry.
type Option func(*Registry)

// WithSecret mixes a deployment secret into the seed.
func WithSecret(secret []byte) Option {
	return func(r *Registry) {
		r.secret = append([]byte(nil), secret...)
	}
}

// NewRegistry creates a registry backed by the given ledger for balances.
func NewRegistry(l ledger.Ledger, opts ...Option) *Registry {
	r := &Registry{
		ledger:  l,
		entries: make(map[domain.CalendarID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WalletFor returns a copy of the wallet for id, deriving it on first use.
// Concurrent first calls for the same id share a single derivation.
func (r *Registry) WalletFor(id domain.CalendarID) *domain.Wallet {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.wallet = Derive(id, r.secret)
	})
	return e.wallet.Clone()
}

// BalanceOf returns the wallet balance in native units.
// Ledger failures are reported as ledger.ErrUnavailable.
func (r *Registry) BalanceOf(ctx context.Context, w *domain.Wallet) (decimal.Decimal, error) {
	if r.ledger == nil {
		return decimal.Zero, fmt.Errorf("%w: no ledger configured", ledger.ErrUnavailable)
	}
	bal, err := r.ledger.GetBalance(ctx, w.Address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: balance of %s: %v", ledger.ErrUnavailable, w.Address, err)
	}
	return bal, nil
}

// Len returns the number of wallets derived so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Derive computes the wallet for id without caching.
func Derive(id domain.CalendarID, secret []byte) *domain.Wallet {
	seed := Seed(id, secret)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &domain.Wallet{
		CalendarID: id,
		PublicKey:  pub,
		PrivateKey: priv,
		Address:    base58.Encode(pub),
	}
}

// Seed returns the 32-byte keypair seed for id.
func Seed(id domain.CalendarID, secret []byte) []byte {
	if len(secret) == 0 {
		sum := sha256.Sum256([]byte(id))
		return sum[:]
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return mac.Sum(nil)
}
