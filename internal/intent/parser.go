// Package intent turns calendar event text into transaction intents.
//
// Two patterns are recognized, tried in this order:
//
//	Send <amount> <TOKEN> to <recipient>     (title)
//	Swap <amount> <FROM> to <TO>             (title)
//	Send <amount> <TOKEN> to <recipient>     (description, fallback)
//
// Anything else is unrecognized. Matching is a best-effort heuristic: the
// patterns are searched for anywhere in the text and keywords are
// case-insensitive.
package intent

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"calendefi/internal/domain"
)

var (
	// The base58 alternative must end on a word boundary so that an
	// over-long identifier falls through to the free-form alternative whole.
	transferPattern = regexp.MustCompile(`(?i:send)\s+([\d.]+)\s+([A-Za-z]+)\s+(?i:to)\s+([1-9A-HJ-NP-Za-km-z]{32,44}\b|[\w.]+)`)
	swapPattern     = regexp.MustCompile(`(?i:swap)\s+([\d.]+)\s+(\w+)\s+(?i:to)\s+(\w+)`)

	// amountPrefix is the longest valid decimal prefix of a [\d.]+ run.
	amountPrefix = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)`)
)

// Parse interprets an event title, falling back to the description for
// transfers. It never fails: unmatched text yields an unrecognized intent.
func Parse(title, description string) domain.Intent {
	if in, ok := matchTransfer(title); ok {
		return in
	}
	if in, ok := matchSwap(title); ok {
		return in
	}
	if description != "" {
		if in, ok := matchTransfer(description); ok {
			return in
		}
	}
	return domain.Unrecognized()
}

// ParseTransfer applies only the transfer pattern.
func ParseTransfer(text string) (domain.Intent, bool) {
	return matchTransfer(text)
}

func matchTransfer(text string) (domain.Intent, bool) {
	m := transferPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Intent{}, false
	}
	amount, ok := parseAmount(m[1])
	if !ok {
		return domain.Intent{}, false
	}
	return domain.NewTransfer(amount, m[2], m[3]), true
}

func matchSwap(text string) (domain.Intent, bool) {
	m := swapPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Intent{}, false
	}
	amount, ok := parseAmount(m[1])
	if !ok {
		return domain.Intent{}, false
	}
	return domain.NewSwap(amount, m[2], m[3]), true
}

// parseAmount reads the decimal prefix of raw ("2.5.1" reads as 2.5).
// A run without digits, or a non-positive value, is rejected.
func parseAmount(raw string) (decimal.Decimal, bool) {
	prefix := amountPrefix.FindString(raw)
	if prefix == "" {
		return decimal.Decimal{}, false
	}
	prefix = strings.TrimSuffix(prefix, ".")
	if strings.HasPrefix(prefix, ".") {
		prefix = "0" + prefix
	}
	amount, err := decimal.NewFromString(prefix)
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, false
	}
	return amount, true
}
