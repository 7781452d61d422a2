package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetBalance retrieves the balance of an account in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetLatestBlockhash retrieves a recent blockhash for transaction signing.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, tx []byte) (string, error)

	// GetSignatureStatuses retrieves the status of each signature.
	// Entries are nil for signatures the node has not seen.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
