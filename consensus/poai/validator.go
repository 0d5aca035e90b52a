package poai

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/consensus/colormark"
	"github.com/SELF-HQ/self-chain-core/core/types"
)

const validationCacheSize = 4096

// ColorSource yields the current color marker of an address, typically the
// account state at the parent block.
type ColorSource interface {
	Color(addr string) string
}

// BlockValidator performs the per-transaction checks shared by every
// proposal: signature verification and color-marker transitions. Results
// are memoized in ARC caches so competing proposals that share transactions
// are only verified once.
type BlockValidator struct {
	sigcache   *lru.ARCCache // tx hash -> bool
	colorcache *lru.ARCCache // tx hash || old color -> new color
}

// NewBlockValidator creates a validator with warm caches.
func NewBlockValidator() *BlockValidator {
	sigcache, _ := lru.NewARC(validationCacheSize)
	colorcache, _ := lru.NewARC(validationCacheSize)
	return &BlockValidator{sigcache: sigcache, colorcache: colorcache}
}

// VerifyTransactions checks the structural validity and signature of every
// transaction in the block.
func (bv *BlockValidator) VerifyTransactions(block *types.Block) error {
	for _, tx := range block.Transactions {
		hash := tx.Hash()
		if ok, cached := bv.sigcache.Get(hash); cached {
			if ok.(bool) {
				continue
			}
			return fmt.Errorf("%w: tx %s", types.ErrBadSignature, hash)
		}
		err := tx.SanityCheck()
		bv.sigcache.Add(hash, err == nil)
		if err != nil {
			return fmt.Errorf("tx %s: %w", hash, err)
		}
	}
	return nil
}

// VerifyColors walks the block's transactions in order, tracking each
// sender's advancing color from the parent state, and rejects the block on
// the first transition that does not recompute.
func (bv *BlockValidator) VerifyColors(block *types.Block, src ColorSource) error {
	colors := make(map[string]string)
	for _, tx := range block.Transactions {
		old, ok := colors[tx.Sender]
		if !ok {
			old = src.Color(tx.Sender)
		}
		next, err := bv.advance(old, tx.Hash())
		if err != nil {
			return fmt.Errorf("tx %s sender %s: %w", tx.Hash(), tx.Sender, err)
		}
		colors[tx.Sender] = next
	}
	return nil
}

func (bv *BlockValidator) advance(old string, txHash common.Hash) (string, error) {
	key := txHash.Hex() + old
	if next, cached := bv.colorcache.Get(key); cached {
		return next.(string), nil
	}
	next, err := colormark.Advance(old, txHash)
	if err != nil {
		return "", err
	}
	bv.colorcache.Add(key, next)
	return next, nil
}
