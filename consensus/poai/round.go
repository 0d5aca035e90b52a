package poai

import (
	"time"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/core/types"
)

// Phase is the position of the round state machine.
type Phase uint8

const (
	PhaseProposeWindow Phase = iota
	PhaseVoting
	PhaseFinalize
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseProposeWindow:
		return "propose_window"
	case PhaseVoting:
		return "voting"
	case PhaseFinalize:
		return "finalize"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// round is the engine's per-round working state. A failed round is replaced
// by a fresh one at the same height with the round number incremented; a
// committed round is replaced by round zero of the next height.
type round struct {
	height uint64
	number uint64
	start  time.Time
	phase  Phase

	collector *Collector
	votes     *VotePool

	// locally recomputed reference standing, never gossiped
	reference *types.Block
	refScore  uint64
	target    uint64

	ranked []*RankedProposal
	winner *RankedProposal
}

// rankedFor returns the validated proposal whose block hash matches, nil if
// the hash won the vote without surviving validation here.
func (r *round) rankedFor(hash common.Hash) *RankedProposal {
	for _, rp := range r.ranked {
		if rp.Proposal.Block.Hash() == hash {
			return rp
		}
	}
	return nil
}
