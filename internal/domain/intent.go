package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntentKind tags the variant held by an Intent.
type IntentKind string

const (
	IntentUnrecognized IntentKind = "unrecognized"
	IntentTransfer     IntentKind = "transfer"
	IntentSwap         IntentKind = "swap"
)

// String returns the string representation of IntentKind.
func (k IntentKind) String() string {
	return string(k)
}

// Intent is the structured interpretation of an event title.
// Only the fields relevant to Kind are populated:
//   - transfer: Amount, Token, Recipient
//   - swap: Amount, FromToken, ToToken
type Intent struct {
	Kind      IntentKind      `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Token     string          `json:"token,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	FromToken string          `json:"fromToken,omitempty"`
	ToToken   string          `json:"toToken,omitempty"`
}

// Unrecognized returns the intent for text that matched no pattern.
func Unrecognized() Intent {
	return Intent{Kind: IntentUnrecognized}
}

// NewTransfer builds a transfer intent.
func NewTransfer(amount decimal.Decimal, token, recipient string) Intent {
	return Intent{Kind: IntentTransfer, Amount: amount, Token: token, Recipient: recipient}
}

// NewSwap builds a swap intent.
func NewSwap(amount decimal.Decimal, fromToken, toToken string) Intent {
	return Intent{Kind: IntentSwap, Amount: amount, FromToken: fromToken, ToToken: toToken}
}

// IsRecognized reports whether the intent is a transfer or a swap.
func (i Intent) IsRecognized() bool {
	return i.Kind == IntentTransfer || i.Kind == IntentSwap
}

// Equal reports structural equality. decimal.Decimal values with different
// exponents but equal value compare equal.
func (i Intent) Equal(o Intent) bool {
	return i.Kind == o.Kind &&
		i.Amount.Equal(o.Amount) &&
		i.Token == o.Token &&
		i.Recipient == o.Recipient &&
		i.FromToken == o.FromToken &&
		i.ToToken == o.ToToken
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentTransfer:
		return fmt.Sprintf("transfer %s %s to %s", i.Amount, i.Token, i.Recipient)
	case IntentSwap:
		return fmt.Sprintf("swap %s %s to %s", i.Amount, i.FromToken, i.ToToken)
	default:
		return string(IntentUnrecognized)
	}
}
