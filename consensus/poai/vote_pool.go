package poai

import (
	"fmt"
	"sync"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/params"
)

// VoteOutcome is the terminal verdict of a voting window.
type VoteOutcome uint8

const (
	OutcomePending VoteOutcome = iota
	OutcomeFinalized
	OutcomeNoQuorum
	OutcomeInsufficientParticipation
)

func (o VoteOutcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeFinalized:
		return "finalized"
	case OutcomeNoQuorum:
		return "no_quorum"
	case OutcomeInsufficientParticipation:
		return "insufficient_participation"
	}
	return "unknown"
}

// VotePool tallies ranked votes for one (height, round). Exactly one vote
// per committee member counts; duplicates and equivocations are dropped
// without touching the tally, so a misbehaving validator cannot move it.
type VotePool struct {
	mu        sync.RWMutex
	height    uint64
	round     uint64
	committee *types.Committee
	quorum    params.Fraction
	minPart   params.Fraction

	votesByTarget map[common.Hash][]*types.Vote
	votedTarget   map[string]common.Hash
}

// NewVotePool creates a tally for one round over the given committee.
func NewVotePool(height, round uint64, committee *types.Committee, quorum, minPart params.Fraction) *VotePool {
	return &VotePool{
		height:        height,
		round:         round,
		committee:     committee,
		quorum:        quorum,
		minPart:       minPart,
		votesByTarget: make(map[common.Hash][]*types.Vote),
		votedTarget:   make(map[string]common.Hash),
	}
}

// AddVote admits one ranked vote. Votes from outside the committee, with
// bad signatures, for the wrong round, duplicated, or conflicting with the
// validator's earlier vote are rejected.
func (vp *VotePool) AddVote(v *types.Vote) error {
	if v.Height != vp.height {
		return fmt.Errorf("%w: have %d want %d", ErrWrongHeight, v.Height, vp.height)
	}
	if v.Round != vp.round {
		return fmt.Errorf("%w: have %d want %d", ErrWrongRound, v.Round, vp.round)
	}
	member := vp.committee.Member(v.ValidatorID)
	if member == nil {
		return fmt.Errorf("%w: %s", ErrNotCommittee, v.ValidatorID)
	}
	if !v.VerifySignature(member.PublicKey) {
		return fmt.Errorf("%w: validator %s", ErrBadVoteSignature, v.ValidatorID)
	}

	vp.mu.Lock()
	defer vp.mu.Unlock()
	if prev, voted := vp.votedTarget[v.ValidatorID]; voted {
		if prev == v.BlockHash {
			return fmt.Errorf("%w: validator %s", ErrDuplicateVote, v.ValidatorID)
		}
		return fmt.Errorf("%w: validator %s voted %s then %s", ErrEquivocation, v.ValidatorID, prev, v.BlockHash)
	}
	vp.votedTarget[v.ValidatorID] = v.BlockHash
	vp.votesByTarget[v.BlockHash] = append(vp.votesByTarget[v.BlockHash], v)
	return nil
}

// Participation returns the number of counted votes.
func (vp *VotePool) Participation() int {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	return len(vp.votedTarget)
}

// CountFor returns the number of votes for a block hash.
func (vp *VotePool) CountFor(hash common.Hash) int {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	return len(vp.votesByTarget[hash])
}

// VotesFor returns the counted votes for a block hash.
func (vp *VotePool) VotesFor(hash common.Hash) []*types.Vote {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	votes := vp.votesByTarget[hash]
	out := make([]*types.Vote, len(votes))
	copy(out, votes)
	return out
}

// All returns every counted vote across targets, in no particular order.
func (vp *VotePool) All() []*types.Vote {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	out := make([]*types.Vote, 0, len(vp.votedTarget))
	for _, votes := range vp.votesByTarget {
		out = append(out, votes...)
	}
	return out
}

// HasQuorum reports whether any block hash already holds a quorum of the
// committee, allowing the engine to close the window early.
func (vp *VotePool) HasQuorum() (common.Hash, bool) {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	need := vp.quorum.CeilOf(vp.committee.Size())
	for hash, votes := range vp.votesByTarget {
		if len(votes) >= need {
			return hash, true
		}
	}
	return common.Hash{}, false
}

// Tally evaluates the window's terminal outcome. Participation is judged
// first: a round without enough voters fails on participation even if the
// votes that did arrive agree.
func (vp *VotePool) Tally() (VoteOutcome, common.Hash) {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	size := vp.committee.Size()
	if len(vp.votedTarget) < vp.minPart.CeilOf(size) {
		return OutcomeInsufficientParticipation, common.Hash{}
	}
	need := vp.quorum.CeilOf(size)
	for hash, votes := range vp.votesByTarget {
		if len(votes) >= need {
			return OutcomeFinalized, hash
		}
	}
	return OutcomeNoQuorum, common.Hash{}
}
