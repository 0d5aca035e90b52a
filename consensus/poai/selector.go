// Package poai implements the round consensus engine: deterministic
// transaction selection, integer efficiency scoring, proposal ranking,
// ranked-choice voting with quorum tracking and the round state machine.
package poai

import (
	"bytes"
	"sort"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/params"
)

// Selection band shares over the target count n. Highest and lowest round
// up, middle and oldest truncate, so a block is never short-changed on the
// priced bands.
const (
	highShareNum   = 20
	lowShareNum    = 20
	middleShareNum = 50
	oldestShareNum = 10
	shareDen       = 100
)

// SelectionCompliance classifies how closely a block's transaction set
// tracks the locally recomputed selection.
type SelectionCompliance uint8

const (
	SelectionValid SelectionCompliance = iota
	SelectionWithinTolerance
	SelectionInvalid
)

func (c SelectionCompliance) String() string {
	switch c {
	case SelectionValid:
		return "valid"
	case SelectionWithinTolerance:
		return "within_tolerance"
	case SelectionInvalid:
		return "invalid"
	}
	return "unknown"
}

// Select chooses transactions from the mempool snapshot by the fixed band
// rule: highest-priced 20%, lowest-priced 20%, middle 50% drawn from one
// quarter into the price-ascending order, oldest 10% by timestamp. Bands
// are concatenated in that order and deduplicated, first occurrence wins.
//
// Every sort breaks ties by ascending transaction hash, so the result is
// bit-identical across nodes for the same snapshot.
func Select(mempool []*types.Transaction, maxCount int) types.Transactions {
	n := maxCount
	if len(mempool) < n {
		n = len(mempool)
	}
	if n <= 0 {
		return nil
	}

	highCount := ceilShare(n, highShareNum)
	lowCount := ceilShare(n, lowShareNum)
	middleCount := n * middleShareNum / shareDen
	oldestCount := n * oldestShareNum / shareDen

	byPriceAsc := sortedCopy(mempool, func(a, b *types.Transaction) bool {
		if a.PointPrice != b.PointPrice {
			return a.PointPrice < b.PointPrice
		}
		return hashLess(a, b)
	})
	byPriceDesc := sortedCopy(mempool, func(a, b *types.Transaction) bool {
		if a.PointPrice != b.PointPrice {
			return a.PointPrice > b.PointPrice
		}
		return hashLess(a, b)
	})
	byAge := sortedCopy(mempool, func(a, b *types.Transaction) bool {
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return hashLess(a, b)
	})

	middleStart := n / 4
	if middleStart > len(byPriceAsc) {
		middleStart = len(byPriceAsc)
	}

	selected := make(types.Transactions, 0, n)
	seen := make(map[common.Hash]struct{}, n)
	take := func(txs []*types.Transaction, count int) {
		for _, tx := range txs {
			if count == 0 || len(selected) == n {
				return
			}
			if _, dup := seen[tx.Hash()]; dup {
				continue
			}
			seen[tx.Hash()] = struct{}{}
			selected = append(selected, tx)
			count--
		}
	}

	take(byPriceDesc, highCount)
	take(byPriceAsc, lowCount)
	take(byPriceAsc[middleStart:], middleCount)
	take(byAge, oldestCount)
	return selected
}

// CheckCompliance compares a block's transaction set against the local
// selection from the same snapshot. Exact sequence equality is Valid; a
// symmetric-difference ratio within tolerance is WithinTolerance.
func CheckCompliance(block *types.Block, mempool []*types.Transaction, maxCount int, tolerance params.Fraction) SelectionCompliance {
	expected := Select(mempool, maxCount)

	if len(block.Transactions) == len(expected) {
		exact := true
		for i, tx := range expected {
			if block.Transactions[i].Hash() != tx.Hash() {
				exact = false
				break
			}
		}
		if exact {
			return SelectionValid
		}
	}

	want := make(map[common.Hash]struct{}, len(expected))
	for _, tx := range expected {
		want[tx.Hash()] = struct{}{}
	}
	var mismatches uint64
	for _, tx := range block.Transactions {
		if _, ok := want[tx.Hash()]; ok {
			delete(want, tx.Hash())
		} else {
			mismatches++
		}
	}
	mismatches += uint64(len(want))

	total := len(expected)
	if len(block.Transactions) > total {
		total = len(block.Transactions)
	}
	if total == 0 {
		return SelectionValid
	}
	if tolerance.AtMost(mismatches, uint64(total)) {
		return SelectionWithinTolerance
	}
	return SelectionInvalid
}

func ceilShare(n, num int) int {
	return (n*num + shareDen - 1) / shareDen
}

func hashLess(a, b *types.Transaction) bool {
	ha, hb := a.Hash(), b.Hash()
	return bytes.Compare(ha[:], hb[:]) < 0
}

func sortedCopy(txs []*types.Transaction, less func(a, b *types.Transaction) bool) []*types.Transaction {
	cpy := make([]*types.Transaction, len(txs))
	copy(cpy, txs)
	sort.SliceStable(cpy, func(i, j int) bool { return less(cpy[i], cpy[j]) })
	return cpy
}
