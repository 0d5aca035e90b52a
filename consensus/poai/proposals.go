package poai

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/params"
)

// RankedProposal is a fully validated proposal annotated with its recomputed
// score and its standing against the local reference block.
type RankedProposal struct {
	Proposal        *types.BlockProposal
	VerifiedScore   uint64
	Compliance      SelectionCompliance
	BeatsReference  bool
	EfficiencyDelta int64
}

// Collector gathers proposals during the propose window. Admission checks
// are the cheap ones only; full validation runs once the window closes.
type Collector struct {
	mu         sync.Mutex
	height     uint64
	round      uint64
	keys       map[string]ed25519.PublicKey
	byProposer map[string]*types.BlockProposal
	order      []*types.BlockProposal
}

// NewCollector creates a collector for one (height, round) accepting only
// proposers with registered keys.
func NewCollector(height, round uint64, keys map[string]ed25519.PublicKey) *Collector {
	return &Collector{
		height:     height,
		round:      round,
		keys:       keys,
		byProposer: make(map[string]*types.BlockProposal),
	}
}

// Add admits a proposal after the cheap checks: height, round, one proposal
// per proposer, registered key, valid signature.
func (c *Collector) Add(p *types.BlockProposal) error {
	if p.Height != c.height {
		return fmt.Errorf("%w: have %d want %d", ErrWrongHeight, p.Height, c.height)
	}
	if p.Round != c.round {
		return fmt.Errorf("%w: have %d want %d", ErrWrongRound, p.Round, c.round)
	}
	pub, ok := c.keys[p.ProposerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProposer, p.ProposerID)
	}
	if !p.VerifySignature(pub) {
		return fmt.Errorf("%w: proposer %s", ErrBadProposalSignature, p.ProposerID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byProposer[p.ProposerID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateProposer, p.ProposerID)
	}
	c.byProposer[p.ProposerID] = p
	c.order = append(c.order, p)
	return nil
}

// Proposals returns the admitted proposals in arrival order.
func (c *Collector) Proposals() []*types.BlockProposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.BlockProposal, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of admitted proposals.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// ValidationContext carries everything full proposal validation needs: the
// parent to link against, the mempool snapshot the selection is judged on,
// and the locally computed reference standing.
type ValidationContext struct {
	Config           *params.ConsensusConfig
	Parent           *types.BlockHeader
	Mempool          []*types.Transaction
	TargetPointPrice uint64
	ReferenceScore   uint64
	Checker          *BlockValidator
	Colors           ColorSource
}

// Validate runs the full check chain on one proposal.
func (vc *ValidationContext) Validate(p *types.BlockProposal) (*RankedProposal, error) {
	block := p.Block
	if err := block.SanityCheck(vc.Parent, vc.Config.MaxBlockTxs, vc.Config.MaxBlockBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStructure, err)
	}
	if got, want := block.Header.PointPrice, block.Transactions.AveragePointPrice(); got != want {
		return nil, fmt.Errorf("%w: header point price %d, transactions average %d", ErrBadStructure, got, want)
	}
	if err := vc.Checker.VerifyTransactions(block); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStructure, err)
	}
	if err := vc.Checker.VerifyColors(block, vc.Colors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStructure, err)
	}

	compliance := CheckCompliance(block, vc.Mempool, vc.Config.MaxBlockTxs, vc.Config.SelectionTolerance)
	if compliance == SelectionInvalid {
		return nil, fmt.Errorf("%w: proposer %s", ErrSelectionInvalid, p.ProposerID)
	}
	score := ScoreBlock(block, vc.Config.MaxBlockTxs, vc.TargetPointPrice)
	if score != p.DeclaredScore() {
		return nil, fmt.Errorf("%w: declared %d recomputed %d", ErrScoreMismatch, p.DeclaredScore(), score)
	}

	return &RankedProposal{
		Proposal:        p,
		VerifiedScore:   score,
		Compliance:      compliance,
		BeatsReference:  score > vc.ReferenceScore,
		EfficiencyDelta: int64(score) - int64(vc.ReferenceScore),
	}, nil
}

// ValidateAndRank validates the proposals in parallel and returns the
// survivors ranked by score descending, ties broken by ascending proposer
// id. Rejections are reported through onReject; the ranked set itself is
// assembled serially after all workers finish.
func ValidateAndRank(ctx context.Context, proposals []*types.BlockProposal, vc *ValidationContext, onReject func(*types.BlockProposal, error)) ([]*RankedProposal, error) {
	results := make([]*RankedProposal, len(proposals))
	errs := make([]error, len(proposals))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range proposals {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = vc.Validate(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := make([]*RankedProposal, 0, len(proposals))
	for i, rp := range results {
		if rp == nil {
			if onReject != nil {
				onReject(proposals[i], errs[i])
			}
			continue
		}
		ranked = append(ranked, rp)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].VerifiedScore != ranked[j].VerifiedScore {
			return ranked[i].VerifiedScore > ranked[j].VerifiedScore
		}
		return ranked[i].Proposal.ProposerID < ranked[j].Proposal.ProposerID
	})
	return ranked, nil
}
