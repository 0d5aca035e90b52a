package poai

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/SELF-HQ/self-chain-core/consensus/colormark"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

const testChainID = "self-chain-test"

func testKey(t *testing.T, seed byte) ed25519.PrivateKey {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return ed25519.NewKeyFromSeed(s)
}

func signedTx(t *testing.T, key ed25519.PrivateKey, sender string, nonce, price, timestamp uint64) *types.Transaction {
	t.Helper()
	tx := types.NewTransaction(nonce, testChainID, sender, "", nil, price, timestamp)
	tx.Sign(key)
	return tx
}

// testMempool builds n signed transactions with distinct prices and
// timestamps, one sender per transaction.
func testMempool(t *testing.T, n int) []*types.Transaction {
	t.Helper()
	txs := make([]*types.Transaction, n)
	for i := 0; i < n; i++ {
		key := testKey(t, byte(i+1))
		sender := fmt.Sprintf("wallet-%03d", i)
		txs[i] = signedTx(t, key, sender, 1, uint64(100+i*10), uint64(1000+i))
	}
	return txs
}

// testCommittee builds n validators v0..v(n-1) with bonds of one.
func testCommittee(t *testing.T, n int) (*types.Committee, map[string]ed25519.PrivateKey) {
	t.Helper()
	keys := make(map[string]ed25519.PrivateKey, n)
	vs := make([]*types.Validator, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v%d", i)
		key := testKey(t, byte(0x80+i))
		keys[id] = key
		vs[i] = &types.Validator{
			ID:        id,
			PublicKey: ed25519.PublicFromPrivate(key),
			Bond:      big.NewInt(1),
			Eligible:  true,
		}
	}
	return types.NewCommittee(vs), keys
}

// initialColors satisfies ColorSource with the fresh-wallet color.
type initialColors struct{}

func (initialColors) Color(string) string { return colormark.Initial }
