package solana

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// systemInstructionTransfer is the System Program instruction index for Transfer.
const systemInstructionTransfer uint32 = 2

// SignedTransaction is a serialized legacy transaction ready for sendTransaction.
type SignedTransaction struct {
	Raw       []byte
	Signature string // base58 of the fee payer signature
}

// TransferParams describes a native transfer.
type TransferParams struct {
	From            ed25519.PrivateKey
	To              PublicKey
	Lamports        uint64
	RecentBlockhash string
}

// BuildTransfer builds and signs a legacy transaction with a single
// System Program transfer instruction. The sender pays the fee.
func BuildTransfer(p TransferParams) (*SignedTransaction, error) {
	if len(p.From) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size %d", len(p.From))
	}
	from, err := PublicKeyFromEd25519(p.From.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	if from == p.To {
		return nil, fmt.Errorf("sender and recipient are the same account")
	}
	blockhash, err := ParsePublicKey(p.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("recent blockhash: %w", err)
	}

	message := compileTransferMessage(from, p.To, p.Lamports, blockhash)
	sig := ed25519.Sign(p.From, message)

	raw := make([]byte, 0, 1+len(sig)+len(message))
	raw = appendCompactU16(raw, 1)
	raw = append(raw, sig...)
	raw = append(raw, message...)

	return &SignedTransaction{
		Raw:       raw,
		Signature: base58.Encode(sig),
	}, nil
}

// compileTransferMessage serializes the legacy message:
// header, account keys, recent blockhash, instructions.
func compileTransferMessage(from, to PublicKey, lamports uint64, blockhash PublicKey) []byte {
	msg := make([]byte, 0, 3+1+3*PublicKeyLength+PublicKeyLength+1+1+1+2+1+12)

	// Header: one required signer, no readonly signers, one readonly unsigned (the program).
	msg = append(msg, 1, 0, 1)

	msg = appendCompactU16(msg, 3)
	msg = append(msg, from[:]...)
	msg = append(msg, to[:]...)
	msg = append(msg, SystemProgramID[:]...)

	msg = append(msg, blockhash[:]...)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemInstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg = appendCompactU16(msg, 1)
	msg = append(msg, 2) // program id index
	msg = appendCompactU16(msg, 2)
	msg = append(msg, 0, 1)
	msg = appendCompactU16(msg, len(data))
	msg = append(msg, data...)

	return msg
}

// appendCompactU16 appends n in the shortvec encoding used for lengths.
func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

// SignatureOf returns the base58 fee payer signature of a serialized
// transaction, or "" if tx is too short.
func SignatureOf(tx []byte) string {
	// compact-u16 signature count of 1 is a single byte
	if len(tx) < 1+ed25519.SignatureSize {
		return ""
	}
	return base58.Encode(tx[1 : 1+ed25519.SignatureSize])
}
