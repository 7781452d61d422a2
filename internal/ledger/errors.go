package ledger

import "errors"

var (
	// ErrUnavailable wraps any failure talking to the ledger.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrInvalidRecipient is returned when the recipient is not a usable address.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidAmount is returned for amounts that cannot be transferred.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrConfirmationTimeout is returned when a submitted transfer was not
	// confirmed in time. The transfer may still land.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)
