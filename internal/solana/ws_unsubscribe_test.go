package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"calendefi/internal/ledger"
	"calendefi/internal/wallet"
)

// ackServer confirms every signatureSubscribe with a fresh subscription ID and
// never notifies. Subscription IDs named in signatureUnsubscribe are sent to
// unsubscribed.
func ackServer(t *testing.T, unsubscribed chan<- int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		var next int64
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var req struct {
				ID     uint64        `json:"id"`
				Method string        `json:"method"`
				Params []interface{} `json:"params"`
			}
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}

			switch req.Method {
			case "signatureSubscribe":
				next++
				subID := next
				c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: &subID})
			case "signatureUnsubscribe":
				if len(req.Params) == 1 {
					if id, ok := req.Params[0].(float64); ok {
						unsubscribed <- int64(id)
					}
				}
				c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
			}
		}
	}))
}

// fakeRPC answers blockhash requests, fails sends with sendErr and never
// reports a signature status.
type fakeRPC struct {
	mu      sync.Mutex
	sendErr error
	sent    int
}

func (f *fakeRPC) GetBalance(context.Context, string) (uint64, error) { return 0, nil }

func (f *fakeRPC) GetLatestBlockhash(context.Context) (*Blockhash, error) {
	return &Blockhash{Hash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"}, nil
}

func (f *fakeRPC) SendTransaction(context.Context, []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return fmt.Sprintf("fakesig%d", f.sent), nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, sigs []string) ([]*SignatureStatus, error) {
	return make([]*SignatureStatus, len(sigs)), nil
}

func (c *WSClientImpl) liveSubscriptions() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

func newAckClient(t *testing.T) (*WSClientImpl, <-chan int64) {
	t.Helper()

	unsubscribed := make(chan int64, 16)
	server := ackServer(t, unsubscribed)
	t.Cleanup(server.Close)

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, unsubscribed
}

func TestWSClient_Unsubscribe(t *testing.T) {
	client, unsubscribed := newAckClient(t)
	ctx := context.Background()

	ch, err := client.SubscribeSignature(ctx, "testsig")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	if n := client.liveSubscriptions(); n != 1 {
		t.Fatalf("expected 1 live subscription, got %d", n)
	}

	if err := client.Unsubscribe("testsig"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if n := client.liveSubscriptions(); n != 0 {
		t.Errorf("expected no live subscriptions, got %d", n)
	}

	select {
	case id := <-unsubscribed:
		if id != 1 {
			t.Errorf("expected signatureUnsubscribe for subscription 1, got %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("node never received signatureUnsubscribe")
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}

	// Unknown or already released signatures are no-ops
	if err := client.Unsubscribe("testsig"); err != nil {
		t.Errorf("second Unsubscribe: %v", err)
	}
}

func TestWSClient_UnsubscribeAfterClose(t *testing.T) {
	client, _ := newAckClient(t)

	if _, err := client.SubscribeSignature(context.Background(), "testsig"); err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	client.Close()

	if err := client.Unsubscribe("testsig"); err != nil {
		t.Errorf("Unsubscribe after Close: %v", err)
	}
}

func TestLedger_FailedSendsReleaseSubscriptions(t *testing.T) {
	client, unsubscribed := newAckClient(t)
	rpc := &fakeRPC{sendErr: errors.New("connection refused")}
	l := NewLedger(rpc, WithWSClient(client))

	from := wallet.Derive("alice@example.com", nil)
	to := wallet.Derive("bob@example.com", nil)

	for i := 0; i < 5; i++ {
		// Distinct amounts give distinct signatures
		amount := decimal.NewFromInt(int64(i + 1))
		_, err := l.SubmitTransfer(context.Background(), from, to.Address, amount)
		if !errors.Is(err, ledger.ErrUnavailable) {
			t.Fatalf("transfer %d: expected ErrUnavailable, got %v", i, err)
		}
	}

	if n := client.liveSubscriptions(); n != 0 {
		t.Errorf("expected no live subscriptions after failed sends, got %d", n)
	}
	for i := 0; i < 5; i++ {
		select {
		case <-unsubscribed:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 5 subscriptions cancelled at the node", i)
		}
	}
}

func TestLedger_ConfirmationTimeoutReleasesSubscription(t *testing.T) {
	client, _ := newAckClient(t)
	l := NewLedger(&fakeRPC{}, WithWSClient(client),
		WithPollInterval(5*time.Millisecond),
		WithConfirmTimeout(30*time.Millisecond))

	from := wallet.Derive("alice@example.com", nil)
	to := wallet.Derive("bob@example.com", nil)

	_, err := l.SubmitTransfer(context.Background(), from, to.Address, decimal.NewFromInt(1))
	if !errors.Is(err, ledger.ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}

	if n := client.liveSubscriptions(); n != 0 {
		t.Errorf("expected no live subscriptions after timeout, got %d", n)
	}
}
