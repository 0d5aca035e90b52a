// Package state implements the Merkle-committed account store and the block
// application contract. The consensus engine is the only caller of Apply and
// application is strictly serialized by height.
package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/consensus/colormark"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/selfdb"
)

var (
	ErrStaleNonce          = errors.New("state: stale transaction nonce")
	ErrInsufficientBalance = errors.New("state: insufficient balance for point price")
	ErrStateRootMismatch   = errors.New("state: declared state root does not match computed root")
	ErrBadColorTransition  = errors.New("state: invalid color transition")
)

var accountKeyPrefix = []byte("self/account/")

// StateDB is the account store. Accounts are cached in memory and written
// through to the backing key-value database on Apply.
type StateDB struct {
	mu       sync.RWMutex
	db       selfdb.KeyValueStore
	accounts map[string]*types.Account
}

// New creates a state database over the given backing store.
func New(db selfdb.KeyValueStore) *StateDB {
	return &StateDB{
		db:       db,
		accounts: make(map[string]*types.Account),
	}
}

// GetAccount returns a copy of the account for addr. Unknown addresses
// yield a fresh zeroed account with the initial color.
func (s *StateDB) GetAccount(addr string) *types.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(addr).Copy()
}

// Color returns the current color marker for addr.
func (s *StateDB) Color(addr string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(addr).Color
}

func (s *StateDB) getAccountLocked(addr string) *types.Account {
	if acct, ok := s.accounts[addr]; ok {
		return acct
	}
	if s.db != nil {
		if raw, err := s.db.Get(accountKey(addr)); err == nil {
			if acct, ok := types.DecodeAccount(raw); ok {
				s.accounts[addr] = acct
				return acct
			}
		}
	}
	return types.NewAccount(addr)
}

// SetAccount installs an account, replacing any previous value. Used for
// genesis allocation and tests; consensus-path mutation goes through Apply.
func (s *StateDB) SetAccount(acct *types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.Address] = acct.Copy()
}

// ComputeRoot derives the Merkle commitment over all known accounts,
// ordered by ascending address.
func (s *StateDB) ComputeRoot() common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.computeRootLocked()
}

func (s *StateDB) computeRootLocked() common.Hash {
	addrs := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	leaves := make([]common.Hash, len(addrs))
	for i, addr := range addrs {
		leaves[i] = s.accounts[addr].LeafHash()
	}
	return types.DeriveRoot(leaves)
}

// Apply executes a finalized block against the account state and returns the
// resulting state root. Each transaction must carry the sender's next nonce,
// a covered point price and a valid color transition implied by its hash.
//
// If the block header declares a state root and it does not match the
// computed root, the mutation is rolled back and ErrStateRootMismatch is
// returned; the caller treats this as a hard consistency alarm.
func (s *StateDB) Apply(block *types.Block) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged, err := s.executeLocked(block)
	if err != nil {
		return common.Hash{}, err
	}

	// Stage into the live map, keeping originals for rollback.
	originals := make(map[string]*types.Account, len(staged))
	for addr, acct := range staged {
		originals[addr] = s.accounts[addr]
		s.accounts[addr] = acct
	}

	root := s.computeRootLocked()
	if !block.Header.StateRoot.IsZero() && root != block.Header.StateRoot {
		for addr, orig := range originals {
			if orig == nil {
				delete(s.accounts, addr)
			} else {
				s.accounts[addr] = orig
			}
		}
		return common.Hash{}, fmt.Errorf("%w: have %s declared %s",
			ErrStateRootMismatch, root, block.Header.StateRoot)
	}

	if s.db != nil {
		for addr, acct := range staged {
			if err := s.db.Put(accountKey(addr), acct.EncodeCanonical()); err != nil {
				return common.Hash{}, err
			}
		}
	}
	return root, nil
}

// DryRun executes the block against staged account copies and returns the
// root the state would commit to, without mutating anything. Builders use it
// to declare the post-apply state root in their headers.
func (s *StateDB) DryRun(block *types.Block) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged, err := s.executeLocked(block)
	if err != nil {
		return common.Hash{}, err
	}

	originals := make(map[string]*types.Account, len(staged))
	for addr, acct := range staged {
		originals[addr] = s.accounts[addr]
		s.accounts[addr] = acct
	}
	root := s.computeRootLocked()
	for addr, orig := range originals {
		if orig == nil {
			delete(s.accounts, addr)
		} else {
			s.accounts[addr] = orig
		}
	}
	return root, nil
}

// executeLocked runs the block's transactions against copies of the touched
// accounts and returns the staged results. The live map is not modified.
func (s *StateDB) executeLocked(block *types.Block) (map[string]*types.Account, error) {
	staged := make(map[string]*types.Account)
	lookup := func(addr string) *types.Account {
		if acct, ok := staged[addr]; ok {
			return acct
		}
		acct := s.getAccountLocked(addr).Copy()
		staged[addr] = acct
		return acct
	}

	for _, tx := range block.Transactions {
		sender := lookup(tx.Sender)
		if tx.Nonce != sender.Nonce+1 {
			return nil, fmt.Errorf("%w: sender %s have %d want %d",
				ErrStaleNonce, tx.Sender, tx.Nonce, sender.Nonce+1)
		}
		price := new(big.Int).SetUint64(tx.PointPrice)
		if sender.Balance.Cmp(price) < 0 {
			return nil, fmt.Errorf("%w: sender %s", ErrInsufficientBalance, tx.Sender)
		}
		newColor, err := colormark.Advance(sender.Color, tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("%w: sender %s: %v", ErrBadColorTransition, tx.Sender, err)
		}
		sender.Balance.Sub(sender.Balance, price)
		sender.Nonce = tx.Nonce
		sender.Color = newColor
	}
	return staged, nil
}

func accountKey(addr string) []byte {
	return append(append([]byte(nil), accountKeyPrefix...), addr...)
}
