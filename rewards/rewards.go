// Package rewards turns completed consensus rounds into reward
// distributions. The engine emits a CompletedRound record per finalized
// block; a Distributor decides who earned what. Distribution is pluggable
// so networks can swap the split without touching consensus.
package rewards

import (
	"errors"
	"math/big"

	"github.com/SELF-HQ/self-chain-core/common"
)

// Basis points denominator for split arithmetic.
const bpsDen = 10000

// DefaultBlockReward is the per-block reward pool in the smallest native
// unit.
var DefaultBlockReward = big.NewInt(1_000_000_000)

var (
	ErrNoVoters     = errors.New("rewards: completed round has no voters")
	ErrBadSplit     = errors.New("rewards: split shares must sum to 10000 bps")
	ErrMissingBonds = errors.New("rewards: bond lookup required for stake weighting")
)

// VoterInfo records one counted vote of a finalized round.
type VoterInfo struct {
	ValidatorID string
	BlockHash   common.Hash
}

// CompletedRound is the engine's record of a finalized round, everything a
// distributor needs to assign credit.
type CompletedRound struct {
	Height           uint64
	Round            uint64
	ProposerID       string
	BlockHash        common.Hash
	EfficiencyScore  uint64
	Voters           []VoterInfo
	ColorValidatorID string
}

// WinningVoters returns the voters whose vote matched the finalized hash.
func (cr *CompletedRound) WinningVoters() []VoterInfo {
	out := make([]VoterInfo, 0, len(cr.Voters))
	for _, v := range cr.Voters {
		if v.BlockHash == cr.BlockHash {
			out = append(out, v)
		}
	}
	return out
}

// Distribution maps recipient id to reward amount.
type Distribution map[string]*big.Int

// Total sums every amount in the distribution.
func (d Distribution) Total() *big.Int {
	total := new(big.Int)
	for _, amt := range d {
		total.Add(total, amt)
	}
	return total
}

func (d Distribution) add(id string, amt *big.Int) {
	if amt.Sign() == 0 {
		return
	}
	if cur, ok := d[id]; ok {
		cur.Add(cur, amt)
		return
	}
	d[id] = new(big.Int).Set(amt)
}

// Distributor splits a block reward over the participants of a completed
// round. Every unit of total must be assigned; no amount is burned.
type Distributor interface {
	Distribute(cr *CompletedRound, total *big.Int) (Distribution, error)
}

func bpsShare(total *big.Int, bps uint64) *big.Int {
	share := new(big.Int).SetUint64(bps)
	share.Mul(share, total)
	return share.Div(share, big.NewInt(bpsDen))
}
