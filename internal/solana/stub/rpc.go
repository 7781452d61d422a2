package stub

import (
	"context"
	"errors"
	"sync"

	"calendefi/internal/solana"
)

// ErrNotFound is returned when an account balance is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Sent transactions are
// reported with the configured Status on the next GetSignatureStatuses call.
type RPCClient struct {
	mu       sync.Mutex
	Balances map[string]uint64
	Hash     string
	Status   *solana.SignatureStatus // nil leaves sent transactions unseen
	SendErr  error
	Sent     [][]byte

	signatures []string
}

// NewRPCClient creates a new stub RPC client that confirms everything.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances: make(map[string]uint64),
		Hash:     "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		Status:   &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed},
	}
}

// GetBalance retrieves the balance from the stub store.
func (c *RPCClient) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.Balances[address]
	if !ok {
		return 0, ErrNotFound
	}
	return b, nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	return &solana.Blockhash{Hash: c.Hash, LastValidBlockHeight: 1000}, nil
}

// SendTransaction records tx and returns the signature embedded in it.
func (c *RPCClient) SendTransaction(_ context.Context, tx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, tx)
	sig := solana.SignatureOf(tx)
	c.signatures = append(c.signatures, sig)
	return sig, nil
}

// GetSignatureStatuses reports Status for every sent signature.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		for _, sent := range c.signatures {
			if sent == sig && c.Status != nil {
				s := *c.Status
				statuses[i] = &s
			}
		}
	}
	return statuses, nil
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// Verify interface compliance at compile time.
var _ solana.RPCClient = (*RPCClient)(nil)
