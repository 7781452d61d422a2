package intent

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendefi/internal/domain"
)

const testAddress = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestParse_Transfer(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		amount    string
		token     string
		recipient string
	}{
		{"base58 address", "Send 5 SOL to " + testAddress, "5", "SOL", testAddress},
		{"fractional amount", "Send 0.25 SOL to " + testAddress, "0.25", "SOL", testAddress},
		{"lowercase keywords", "send 1.5 sol to " + testAddress, "1.5", "sol", testAddress},
		{"digits in token symbol", "Send 5 PH100 to PablosPro.eth", "", "", ""},
		{"dotted alias", "Send 5 USDC to pablos.sol", "5", "USDC", "pablos.sol"},
		{"embedded in sentence", "Reminder: Send 3 SOL to alice before lunch", "3", "SOL", "alice"},
		{"leading dot amount", "Send .5 SOL to bob", "0.5", "SOL", "bob"},
		{"multiple dots uses prefix", "Send 2.5.1 SOL to bob", "2.5", "SOL", "bob"},
		{"trailing dot", "Send 7. SOL to bob", "7", "SOL", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title, "")
			if tt.amount == "" {
				// Token symbols are letters only, so "PH100" does not match.
				assert.Equal(t, domain.IntentUnrecognized, got.Kind)
				return
			}
			require.Equal(t, domain.IntentTransfer, got.Kind)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tt.amount)), "amount %s", got.Amount)
			assert.Equal(t, tt.token, got.Token)
			assert.Equal(t, tt.recipient, got.Recipient)
		})
	}
}

func TestParse_TransferAmountMatchesLiteral(t *testing.T) {
	for _, lit := range []string{"1", "0.1", "12.345678901", "1000000", "0.000000001"} {
		got := Parse("Send "+lit+" SOL to "+testAddress, "")
		require.Equal(t, domain.IntentTransfer, got.Kind, lit)
		assert.Equal(t, lit, got.Amount.String())
	}
}

func TestParse_Swap(t *testing.T) {
	got := Parse("Swap 10 USDC to SOL", "")

	require.Equal(t, domain.IntentSwap, got.Kind)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "USDC", got.FromToken)
	assert.Equal(t, "SOL", got.ToToken)
	assert.Empty(t, got.Recipient)
}

func TestParse_TransferTakesPrecedenceOverSwap(t *testing.T) {
	got := Parse("Swap 1 USDC to SOL then Send 2 SOL to bob", "")

	require.Equal(t, domain.IntentTransfer, got.Kind)
	assert.Equal(t, "bob", got.Recipient)
}

func TestParse_DescriptionFallback(t *testing.T) {
	got := Parse("Monthly rent", "please Send 4 SOL to "+testAddress)

	require.Equal(t, domain.IntentTransfer, got.Kind)
	assert.Equal(t, testAddress, got.Recipient)
}

func TestParse_DescriptionNotUsedForSwap(t *testing.T) {
	got := Parse("Portfolio rebalance", "Swap 10 USDC to SOL")
	assert.Equal(t, domain.IntentUnrecognized, got.Kind)
}

func TestParse_Unrecognized(t *testing.T) {
	for _, title := range []string{
		"Team lunch",
		"",
		"Send SOL to bob",
		"Send ... SOL to bob",
		"Send 0 SOL to bob",
		"Send 0.0 SOL to bob",
		"Swap ten USDC to SOL",
	} {
		got := Parse(title, "")
		assert.Equal(t, domain.IntentUnrecognized, got.Kind, "title %q", title)
		assert.False(t, got.IsRecognized())
	}
}

func TestParse_InvalidTitleAmountFallsBackToDescription(t *testing.T) {
	got := Parse("Send . SOL to bob", "Send 1 SOL to carol")

	require.Equal(t, domain.IntentTransfer, got.Kind)
	assert.Equal(t, "carol", got.Recipient)
}

func TestParse_OverlongIdentifierKeptWhole(t *testing.T) {
	long := testAddress + "abc"
	got := Parse("Send 1 SOL to "+long, "")

	require.Equal(t, domain.IntentTransfer, got.Kind)
	assert.Equal(t, long, got.Recipient)
}

func TestParse_Idempotent(t *testing.T) {
	for _, title := range []string{
		"Send 5 SOL to " + testAddress,
		"Swap 10 USDC to SOL",
		"Team lunch",
	} {
		first := Parse(title, "desc")
		second := Parse(title, "desc")
		assert.True(t, first.Equal(second), "title %q", title)
	}
}

func TestParseTransfer(t *testing.T) {
	in, ok := ParseTransfer("Send 2 SOL to bob")
	require.True(t, ok)
	assert.Equal(t, "bob", in.Recipient)

	_, ok = ParseTransfer("Swap 2 USDC to SOL")
	assert.False(t, ok)
}
