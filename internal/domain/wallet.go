package domain

import "crypto/ed25519"

// Wallet is the keypair owned by a single calendar.
type Wallet struct {
	CalendarID CalendarID
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Address    string // base58-encoded public key
}

// Sign signs message with the wallet's private key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.PrivateKey, message)
}

// Clone returns a deep copy of w.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.PublicKey = append(ed25519.PublicKey(nil), w.PublicKey...)
	c.PrivateKey = append(ed25519.PrivateKey(nil), w.PrivateKey...)
	return &c
}
