package rewards

import (
	"math/big"
	"sort"
)

// Default split of a block reward in basis points.
const (
	DefaultBuilderBPS  = 9000
	DefaultVoterBPS    = 800
	DefaultColorBPS    = 100
	DefaultTreasuryBPS = 100
)

// SplitDistributor assigns fixed basis-point shares: the winning builder,
// the voters who backed the winner (split evenly), the round's color
// validator and the treasury. Integer division dust lands in the treasury
// so the distribution always sums to the full reward.
type SplitDistributor struct {
	BuilderBPS  uint64
	VoterBPS    uint64
	ColorBPS    uint64
	TreasuryBPS uint64
	TreasuryID  string
}

// NewSplitDistributor returns the default 90/8/1/1 split paying dust and
// the treasury share to treasuryID.
func NewSplitDistributor(treasuryID string) *SplitDistributor {
	return &SplitDistributor{
		BuilderBPS:  DefaultBuilderBPS,
		VoterBPS:    DefaultVoterBPS,
		ColorBPS:    DefaultColorBPS,
		TreasuryBPS: DefaultTreasuryBPS,
		TreasuryID:  treasuryID,
	}
}

// Distribute implements Distributor.
func (d *SplitDistributor) Distribute(cr *CompletedRound, total *big.Int) (Distribution, error) {
	if d.BuilderBPS+d.VoterBPS+d.ColorBPS+d.TreasuryBPS != bpsDen {
		return nil, ErrBadSplit
	}
	winners := cr.WinningVoters()
	if len(winners) == 0 {
		return nil, ErrNoVoters
	}

	dist := make(Distribution)
	dist.add(cr.ProposerID, bpsShare(total, d.BuilderBPS))
	dist.add(cr.ColorValidatorID, bpsShare(total, d.ColorBPS))

	voterPool := bpsShare(total, d.VoterBPS)
	perVoter := new(big.Int).Div(voterPool, big.NewInt(int64(len(winners))))
	for _, v := range winners {
		dist.add(v.ValidatorID, perVoter)
	}

	// treasury takes its share plus all rounding dust
	dust := new(big.Int).Set(total)
	dust.Sub(dust, dist.Total())
	dist.add(d.TreasuryID, dust)
	return dist, nil
}

// StakeWeightedDistributor pays the voter pool proportionally to each
// winning voter's bond instead of evenly; the other shares match
// SplitDistributor. Voters with a zero bond earn nothing from the pool.
type StakeWeightedDistributor struct {
	Split  SplitDistributor
	BondOf func(validatorID string) *big.Int
}

// NewStakeWeightedDistributor returns the default split with bond-weighted
// voter payouts.
func NewStakeWeightedDistributor(treasuryID string, bondOf func(string) *big.Int) *StakeWeightedDistributor {
	return &StakeWeightedDistributor{
		Split:  *NewSplitDistributor(treasuryID),
		BondOf: bondOf,
	}
}

// Distribute implements Distributor.
func (d *StakeWeightedDistributor) Distribute(cr *CompletedRound, total *big.Int) (Distribution, error) {
	if d.BondOf == nil {
		return nil, ErrMissingBonds
	}
	s := d.Split
	if s.BuilderBPS+s.VoterBPS+s.ColorBPS+s.TreasuryBPS != bpsDen {
		return nil, ErrBadSplit
	}
	winners := cr.WinningVoters()
	if len(winners) == 0 {
		return nil, ErrNoVoters
	}
	sort.Slice(winners, func(i, j int) bool {
		return winners[i].ValidatorID < winners[j].ValidatorID
	})

	totalBond := new(big.Int)
	bonds := make(map[string]*big.Int, len(winners))
	for _, v := range winners {
		bond := d.BondOf(v.ValidatorID)
		if bond == nil || bond.Sign() <= 0 {
			continue
		}
		bonds[v.ValidatorID] = bond
		totalBond.Add(totalBond, bond)
	}

	dist := make(Distribution)
	dist.add(cr.ProposerID, bpsShare(total, s.BuilderBPS))
	dist.add(cr.ColorValidatorID, bpsShare(total, s.ColorBPS))

	if totalBond.Sign() > 0 {
		voterPool := bpsShare(total, s.VoterBPS)
		for _, v := range winners {
			bond, ok := bonds[v.ValidatorID]
			if !ok {
				continue
			}
			share := new(big.Int).Mul(voterPool, bond)
			share.Div(share, totalBond)
			dist.add(v.ValidatorID, share)
		}
	}

	dust := new(big.Int).Set(total)
	dust.Sub(dust, dist.Total())
	dist.add(s.TreasuryID, dust)
	return dist, nil
}
