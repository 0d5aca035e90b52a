package poai

import (
	"math/big"

	"github.com/SELF-HQ/self-chain-core/core/types"
)

// ScoreScale is the fixed-point scale of efficiency scores: a score of
// 10000 means a perfectly full, perfectly stable, maximally dense block.
const ScoreScale = 10000

var (
	bigScoreScale = big.NewInt(ScoreScale)
	// final product of three unit factors carries scale^3, divided back
	// down by scale^2 to land on the score scale
	bigScoreScaleSq = new(big.Int).Mul(bigScoreScale, bigScoreScale)
)

// ScoreBlock recomputes the efficiency score of a block. All arithmetic is
// integer fixed-point at scale 1e4: each factor is a truncating division
// clamped to the unit range, the final combination rounds half-up. Every
// node recomputes the identical score for the same block.
//
//	fill_ratio      = tx_count / max_txs
//	price_stability = 1 - |avg_point_price - target| / target
//	points_density  = total_points / block_bytes
//	score           = round(fill * stability * density * 10000)
func ScoreBlock(block *types.Block, maxTxs int, targetPointPrice uint64) uint64 {
	txs := block.Transactions
	if len(txs) == 0 || maxTxs <= 0 {
		return 0
	}

	fill := unitFactor(uint64(len(txs)), uint64(maxTxs))
	stability := priceStability(txs.AveragePointPrice(), targetPointPrice)
	density := unitFactor(txs.TotalPoints(), uint64(block.Size()))

	// fill * stability * density * 1e4, rounded half-up over 1e8
	product := new(big.Int).SetUint64(fill)
	product.Mul(product, new(big.Int).SetUint64(stability))
	product.Mul(product, new(big.Int).SetUint64(density))
	product.Add(product, new(big.Int).Rsh(bigScoreScaleSq, 1))
	product.Div(product, bigScoreScaleSq)
	return product.Uint64()
}

// unitFactor returns num/den at the score scale, truncated and clamped to
// the unit range.
func unitFactor(num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	f := new(big.Int).SetUint64(num)
	f.Mul(f, bigScoreScale)
	f.Div(f, new(big.Int).SetUint64(den))
	if !f.IsUint64() || f.Uint64() > ScoreScale {
		return ScoreScale
	}
	return f.Uint64()
}

// priceStability measures how close the block's average point price sits to
// the target. A zero target means no reference exists and scores as fully
// stable.
func priceStability(avg, target uint64) uint64 {
	if target == 0 {
		return ScoreScale
	}
	var deviation uint64
	if avg > target {
		deviation = avg - target
	} else {
		deviation = target - avg
	}
	penalty := unitFactor(deviation, target)
	return ScoreScale - penalty
}
