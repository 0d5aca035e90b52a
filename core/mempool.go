// Package core hosts the shared pending-transaction pool.
package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/core/types"
)

var (
	ErrKnownTransaction = errors.New("core: transaction already pending")
	ErrWrongChainID     = errors.New("core: transaction for a different chain")
)

// Mempool is the shared pending pool. It is read concurrently by the
// selector and by builders. Entries are removed only after a block is
// finalized and applied.
type Mempool struct {
	mu      sync.RWMutex
	chainID string
	pending map[common.Hash]*types.Transaction
	order   []common.Hash // admission order, for stable snapshots
}

// NewMempool creates an empty pool bound to a chain id.
func NewMempool(chainID string) *Mempool {
	return &Mempool{
		chainID: chainID,
		pending: make(map[common.Hash]*types.Transaction),
	}
}

// Add admits a transaction after structural validation.
func (mp *Mempool) Add(tx *types.Transaction) error {
	if tx.ChainID != mp.chainID {
		return fmt.Errorf("%w: have %q want %q", ErrWrongChainID, tx.ChainID, mp.chainID)
	}
	if err := tx.SanityCheck(); err != nil {
		return err
	}
	hash := tx.Hash()

	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, ok := mp.pending[hash]; ok {
		return ErrKnownTransaction
	}
	mp.pending[hash] = tx
	mp.order = append(mp.order, hash)
	return nil
}

// Pending returns a snapshot of the pool in admission order. The slice is
// owned by the caller; the transactions are shared immutable values.
func (mp *Mempool) Pending() []*types.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	out := make([]*types.Transaction, 0, len(mp.order))
	for _, hash := range mp.order {
		if tx, ok := mp.pending[hash]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// Contains reports whether the pool holds a transaction with the hash.
func (mp *Mempool) Contains(hash common.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.pending[hash]
	return ok
}

// Len returns the number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.pending)
}

// Remove drops the given transactions, called after block finalization.
func (mp *Mempool) Remove(txs []*types.Transaction) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, tx := range txs {
		delete(mp.pending, tx.Hash())
	}
	if len(mp.pending)*2 < len(mp.order) {
		mp.compactLocked()
	}
}

func (mp *Mempool) compactLocked() {
	kept := mp.order[:0]
	for _, hash := range mp.order {
		if _, ok := mp.pending[hash]; ok {
			kept = append(kept, hash)
		}
	}
	mp.order = kept
}
