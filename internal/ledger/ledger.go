// Package ledger defines the capability used to move funds on the network.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
)

// NativeToken is the symbol of the chain's native unit.
const NativeToken = "SOL"

// Receipt identifies a confirmed transfer.
type Receipt struct {
	Signature   string
	ExplorerURL string
}

// Ledger submits transfers and reads balances.
type Ledger interface {
	// GetBalance returns the balance of address in native units.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// SubmitTransfer moves amount native units from the wallet to the
	// recipient and blocks until the transfer is confirmed.
	SubmitTransfer(ctx context.Context, from *domain.Wallet, to string, amount decimal.Decimal) (*Receipt, error)
}
