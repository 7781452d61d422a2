package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for a transaction signature to reach confirmed
	// commitment. The returned channel yields at most one notification and is
	// closed afterwards.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Unsubscribe drops the subscription for signature if it is still
	// registered and tells the node to cancel it.
	Unsubscribe(signature string) error

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signature subscription message.
type SignatureNotification struct {
	Signature string
	Slot      uint64
	Err       interface{} // non-nil if the transaction failed
}
