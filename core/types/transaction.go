// Package types defines the canonical wire types of the protocol: blocks,
// transactions, ranked votes, block proposals and accounts.
//
// Every type hashes under its own domain separation prefix so that no valid
// signature for one message type can be replayed as another. The canonical
// encoding is fixed-order little-endian with u64 length prefixes; the same
// bytes are produced on every node for the same value.
package types

import (
	"errors"
	"sync/atomic"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

var (
	ErrMissingSender    = errors.New("types: transaction missing sender")
	ErrMissingChainID   = errors.New("types: transaction missing chain id")
	ErrZeroPointPrice   = errors.New("types: point price must be positive")
	ErrZeroTimestamp    = errors.New("types: timestamp must be positive")
	ErrBadSignature     = errors.New("types: invalid signature")
	ErrBadPublicKeySize = errors.New("types: invalid public key size")
)

// Transaction is an immutable signed transfer of payload bytes with a
// PointPrice priority fee. Identity is the domain-separated hash of the
// canonical encoding; the detached public key and signature are excluded
// from the hash.
//
// Canonical encoding order: nonce, chain_id, sender, recipient (presence
// byte + string), data, point_price, timestamp.
type Transaction struct {
	Nonce      uint64
	ChainID    string
	Sender     string
	Recipient  string // empty = no recipient (deployment-style payload)
	Data       []byte
	PointPrice uint64
	Timestamp  uint64

	// Detached authentication, never part of the transaction hash.
	PublicKey []byte
	Signature []byte

	hash atomic.Value // common.Hash cache
}

// NewTransaction creates an unsigned transaction.
func NewTransaction(nonce uint64, chainID, sender, recipient string, data []byte, pointPrice, timestamp uint64) *Transaction {
	return &Transaction{
		Nonce:      nonce,
		ChainID:    chainID,
		Sender:     sender,
		Recipient:  recipient,
		Data:       data,
		PointPrice: pointPrice,
		Timestamp:  timestamp,
	}
}

func (tx *Transaction) encodeCanonical() []byte {
	b := make([]byte, 0, 64+len(tx.ChainID)+len(tx.Sender)+len(tx.Recipient)+len(tx.Data))
	b = appendUint64(b, tx.Nonce)
	b = appendString(b, tx.ChainID)
	b = appendString(b, tx.Sender)
	b = appendBool(b, tx.Recipient != "")
	b = appendString(b, tx.Recipient)
	b = appendBytes(b, tx.Data)
	b = appendUint64(b, tx.PointPrice)
	b = appendUint64(b, tx.Timestamp)
	return b
}

// Hash returns the domain-separated hash identifying this transaction.
// The result is cached; transactions are never mutated after signing.
func (tx *Transaction) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return h.(common.Hash)
	}
	h := crypto.DomainHash(crypto.TransactionPrefix, tx.encodeCanonical())
	tx.hash.Store(h)
	return h
}

// SigningMessage is the byte string signed by the sender.
func (tx *Transaction) SigningMessage() []byte {
	return crypto.SigningMessage(crypto.TransactionPrefix, tx.Hash())
}

// Sign attaches the sender's public key and signature.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) {
	tx.PublicKey = ed25519.PublicFromPrivate(priv)
	tx.Signature = ed25519.Sign(priv, tx.SigningMessage())
}

// VerifySignature checks the detached signature against the attached key.
func (tx *Transaction) VerifySignature() bool {
	return ed25519.Verify(tx.PublicKey, tx.SigningMessage(), tx.Signature)
}

// SanityCheck validates structural invariants that hold for any transaction
// regardless of account state.
func (tx *Transaction) SanityCheck() error {
	switch {
	case tx.Sender == "":
		return ErrMissingSender
	case tx.ChainID == "":
		return ErrMissingChainID
	case tx.PointPrice == 0:
		return ErrZeroPointPrice
	case tx.Timestamp == 0:
		return ErrZeroTimestamp
	case len(tx.PublicKey) != ed25519.PublicKeySize:
		return ErrBadPublicKeySize
	case !tx.VerifySignature():
		return ErrBadSignature
	}
	return nil
}

// Size returns the encoded byte size including the detached key material.
func (tx *Transaction) Size() int {
	return len(tx.encodeCanonical()) + ed25519.PublicKeySize + ed25519.SignatureSize
}

// Transactions is a slice of transactions with aggregate helpers.
type Transactions []*Transaction

// TotalPoints sums the PointPrice of every transaction.
func (txs Transactions) TotalPoints() uint64 {
	var total uint64
	for _, tx := range txs {
		total += tx.PointPrice
	}
	return total
}

// AveragePointPrice is the truncating integer mean PointPrice, 0 when empty.
func (txs Transactions) AveragePointPrice() uint64 {
	if len(txs) == 0 {
		return 0
	}
	return txs.TotalPoints() / uint64(len(txs))
}

// EncodedSize sums Size() over all transactions.
func (txs Transactions) EncodedSize() int {
	var total int
	for _, tx := range txs {
		total += tx.Size()
	}
	return total
}
