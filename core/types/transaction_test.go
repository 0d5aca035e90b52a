package types

import (
	"errors"
	"testing"

	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

func testKey(t *testing.T, seed byte) ed25519.PrivateKey {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return ed25519.NewKeyFromSeed(s)
}

func newSignedTx(t *testing.T, key ed25519.PrivateKey) *Transaction {
	t.Helper()
	tx := NewTransaction(1, "self-chain-test", "alice", "bob", []byte("payload"), 250, 1000)
	tx.Sign(key)
	return tx
}

func TestTransactionHashExcludesSignature(t *testing.T) {
	tx := NewTransaction(1, "self-chain-test", "alice", "bob", []byte("payload"), 250, 1000)
	before := tx.Hash()
	tx.Sign(testKey(t, 1))
	if after := tx.Hash(); after != before {
		t.Fatalf("hash changed by signing: %s vs %s", before, after)
	}
}

func TestTransactionHashBindsFields(t *testing.T) {
	base := NewTransaction(1, "self-chain-test", "alice", "bob", []byte("payload"), 250, 1000)
	variants := []*Transaction{
		NewTransaction(2, "self-chain-test", "alice", "bob", []byte("payload"), 250, 1000),
		NewTransaction(1, "other-chain", "alice", "bob", []byte("payload"), 250, 1000),
		NewTransaction(1, "self-chain-test", "carol", "bob", []byte("payload"), 250, 1000),
		NewTransaction(1, "self-chain-test", "alice", "", []byte("payload"), 250, 1000),
		NewTransaction(1, "self-chain-test", "alice", "bob", []byte("other"), 250, 1000),
		NewTransaction(1, "self-chain-test", "alice", "bob", []byte("payload"), 251, 1000),
		NewTransaction(1, "self-chain-test", "alice", "bob", []byte("payload"), 250, 1001),
	}
	for i, v := range variants {
		if v.Hash() == base.Hash() {
			t.Errorf("variant %d collides with base hash", i)
		}
	}
}

func TestTransactionSignature(t *testing.T) {
	key := testKey(t, 1)
	tx := newSignedTx(t, key)
	if !tx.VerifySignature() {
		t.Fatal("valid signature rejected")
	}
	if err := tx.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}

	tx.Signature[0] ^= 0xFF
	if tx.VerifySignature() {
		t.Fatal("corrupted signature accepted")
	}
	if err := tx.SanityCheck(); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("SanityCheck on corrupted signature: have %v, want %v", err, ErrBadSignature)
	}
}

func TestTransactionSanityCheck(t *testing.T) {
	key := testKey(t, 1)
	tests := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"missing sender", func(tx *Transaction) { tx.Sender = "" }, ErrMissingSender},
		{"missing chain", func(tx *Transaction) { tx.ChainID = "" }, ErrMissingChainID},
		{"zero price", func(tx *Transaction) { tx.PointPrice = 0 }, ErrZeroPointPrice},
		{"zero timestamp", func(tx *Transaction) { tx.Timestamp = 0 }, ErrZeroTimestamp},
		{"truncated key", func(tx *Transaction) { tx.PublicKey = tx.PublicKey[:16] }, ErrBadPublicKeySize},
	}
	for _, tt := range tests {
		tx := NewTransaction(1, "self-chain-test", "alice", "bob", nil, 250, 1000)
		tx.Sign(key)
		tt.mut(tx)
		if err := tx.SanityCheck(); !errors.Is(err, tt.want) {
			t.Errorf("%s: have %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestTransactionsAggregates(t *testing.T) {
	txs := Transactions{
		NewTransaction(1, "c", "a", "", nil, 100, 1),
		NewTransaction(2, "c", "a", "", nil, 200, 2),
		NewTransaction(3, "c", "a", "", nil, 301, 3),
	}
	if have, want := txs.TotalPoints(), uint64(601); have != want {
		t.Fatalf("TotalPoints: have %d, want %d", have, want)
	}
	// integer mean truncates
	if have, want := txs.AveragePointPrice(), uint64(200); have != want {
		t.Fatalf("AveragePointPrice: have %d, want %d", have, want)
	}
	if have := Transactions(nil).AveragePointPrice(); have != 0 {
		t.Fatalf("empty AveragePointPrice: have %d, want 0", have)
	}
}
