package poai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/core"
	"github.com/SELF-HQ/self-chain-core/core/state"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/params"
	"github.com/SELF-HQ/self-chain-core/rewards"
)

var (
	ErrNotStarted = errors.New("poai: engine not started")
	ErrHalted     = errors.New("poai: engine halted on state root mismatch")
)

// Clock abstracts wall time so tests can drive rounds deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// ManualClock is a settable clock for tests.
type ManualClock struct {
	t time.Time
}

// NewManualClock starts a manual clock at t.
func NewManualClock(t time.Time) *ManualClock { return &ManualClock{t: t} }

// Now implements Clock.
func (c *ManualClock) Now() time.Time { return c.t }

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) { c.t = t }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// CompletedFunc receives the record of each finalized round.
type CompletedFunc func(*rewards.CompletedRound)

// Engine is the round state machine. All message admission and phase
// transitions funnel through one mutex; proposal validation fans out in
// parallel but its results are installed under the same lock.
//
// The engine builds a reference block locally at round start from its own
// mempool snapshot. The reference is the yardstick for selection compliance
// and scoring and is never gossiped.
type Engine struct {
	cfg   *params.ConsensusConfig
	log   *zap.SugaredLogger
	clock Clock

	state     *state.StateDB
	pool      *core.Mempool
	committee *types.Committee
	builders  map[string]ed25519.PublicKey
	checker   *BlockValidator
	metrics   *Metrics

	onCompleted CompletedFunc

	mu      sync.Mutex
	head    *types.BlockHeader
	cur     *round
	halted  bool
	started bool
}

// NewEngine creates an engine over the given state, mempool and committee,
// anchored at head (the genesis header for a fresh chain).
func NewEngine(cfg *params.ConsensusConfig, st *state.StateDB, pool *core.Mempool, committee *types.Committee, head *types.BlockHeader, logger *zap.SugaredLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		cfg:       cfg,
		log:       logger,
		clock:     SystemClock(),
		state:     st,
		pool:      pool,
		committee: committee,
		builders:  make(map[string]ed25519.PublicKey),
		checker:   NewBlockValidator(),
		metrics:   NewMetrics(nil),
		head:      head,
	}, nil
}

// SetClock replaces the wall clock, for tests. Must be called before Start.
func (e *Engine) SetClock(c Clock) { e.clock = c }

// Now returns the current time on the engine clock. Builders stamp their
// headers with it so block timestamps stay on the consensus clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// SetMetrics replaces the default unregistered metric set.
func (e *Engine) SetMetrics(m *Metrics) { e.metrics = m }

// OnCompleted installs the finalized-round callback, invoked synchronously
// from the commit path.
func (e *Engine) OnCompleted(fn CompletedFunc) { e.onCompleted = fn }

// RegisterBuilder admits a builder identity whose proposals will be
// accepted. Each round's collector keeps the registration snapshot it was
// opened with, so registrations after Start take effect at the next round.
func (e *Engine) RegisterBuilder(id string, pub ed25519.PublicKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	builders := make(map[string]ed25519.PublicKey, len(e.builders)+1)
	for k, v := range e.builders {
		builders[k] = v
	}
	builders[id] = pub
	e.builders = builders
}

// Start opens round zero at the height above head.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	e.startRoundLocked(e.head.Height+1, 0)
}

// Head returns the last committed header.
func (e *Engine) Head() *types.BlockHeader {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.head
}

// Phase returns the current round phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return PhaseFailed
	}
	return e.cur.phase
}

// Height returns the height the engine is currently deciding.
func (e *Engine) Height() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return e.head.Height
	}
	return e.cur.height
}

// RoundNumber returns the current round number at the working height.
func (e *Engine) RoundNumber() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return 0
	}
	return e.cur.number
}

// ReferenceScore returns the score of the locally built reference block.
func (e *Engine) ReferenceScore() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return 0
	}
	return e.cur.refScore
}

// TargetPointPrice returns the round's stability target, the average point
// price of the reference block.
func (e *Engine) TargetPointPrice() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return 0
	}
	return e.cur.target
}

// Ranked returns the validated proposals of the current round in rank
// order, empty before the propose window closes.
func (e *Engine) Ranked() []*RankedProposal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return nil
	}
	out := make([]*RankedProposal, len(e.cur.ranked))
	copy(out, e.cur.ranked)
	return out
}

// SubmitProposal admits one builder proposal into the open propose window.
func (e *Engine) SubmitProposal(p *types.BlockProposal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.acceptingLocked(); err != nil {
		return err
	}
	if e.cur.phase != PhaseProposeWindow {
		return fmt.Errorf("%w: %s", ErrWrongPhase, e.cur.phase)
	}
	if e.clock.Now().After(e.proposeCloseLocked()) {
		e.metrics.ProposalsDropped.WithLabelValues(ReasonLate.String()).Inc()
		return fmt.Errorf("%w: proposer %s", ErrLateProposal, p.ProposerID)
	}
	if err := e.cur.collector.Add(p); err != nil {
		e.metrics.ProposalsDropped.WithLabelValues(Reason(err).String()).Inc()
		return err
	}
	e.metrics.ProposalsAccepted.Inc()
	e.log.Debugw("proposal admitted", "height", p.Height, "round", p.Round, "proposer", p.ProposerID)
	return nil
}

// SubmitVote admits one ranked vote into the open voting window.
func (e *Engine) SubmitVote(v *types.Vote) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.acceptingLocked(); err != nil {
		return err
	}
	if e.cur.phase != PhaseVoting {
		return fmt.Errorf("%w: %s", ErrWrongPhase, e.cur.phase)
	}
	if err := e.cur.votes.AddVote(v); err != nil {
		e.metrics.VotesDropped.WithLabelValues(Reason(err).String()).Inc()
		return err
	}
	e.metrics.VotesAccepted.Inc()
	e.log.Debugw("vote counted", "height", v.Height, "round", v.Round, "validator", v.ValidatorID, "target", v.BlockHash)
	return nil
}

// Advance drives the state machine against the clock, applying every
// transition that is due, and returns the resulting phase. Callers poll it;
// a ticker in production, explicit calls in tests.
func (e *Engine) Advance() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted || e.cur == nil {
		return PhaseFailed
	}
	for {
		now := e.clock.Now()
		switch e.cur.phase {
		case PhaseProposeWindow:
			if now.Before(e.proposeCloseLocked()) {
				return e.cur.phase
			}
			e.closeProposeWindowLocked()
		case PhaseVoting:
			// quorum closes the window early, otherwise wait for the deadline
			if _, quorum := e.cur.votes.HasQuorum(); !quorum && now.Before(e.voteCloseLocked()) {
				return e.cur.phase
			}
			e.tallyLocked()
		case PhaseFinalize:
			e.commitLocked()
			if e.halted {
				return PhaseFailed
			}
		case PhaseCommitted:
			e.startRoundLocked(e.head.Height+1, 0)
		case PhaseFailed:
			e.startRoundLocked(e.cur.height, e.cur.number+1)
		}
	}
}

func (e *Engine) acceptingLocked() error {
	if e.halted {
		return ErrHalted
	}
	if !e.started || e.cur == nil {
		return ErrNotStarted
	}
	return nil
}

// Drift extends every window close; the same bound applies to admission
// and to the transition, so a message and the deadline agree on lateness.
func (e *Engine) proposeCloseLocked() time.Time {
	return e.cfg.ProposeDeadline(e.cur.start).Add(e.cfg.ClockDrift)
}

func (e *Engine) voteCloseLocked() time.Time {
	return e.cfg.VoteDeadline(e.cur.start).Add(e.cfg.ClockDrift)
}

func (e *Engine) startRoundLocked(height, number uint64) {
	now := e.clock.Now()
	snapshot := e.pool.Pending()
	selected := Select(snapshot, e.cfg.MaxBlockTxs)
	target := selected.AveragePointPrice()

	header := &types.BlockHeader{
		Height:       height,
		PreviousHash: e.head.Hash(),
		Timestamp:    uint64(now.Unix()),
		Round:        number,
		ChainID:      e.cfg.ChainID,
		PointPrice:   target,
	}
	reference := types.NewBlock(header, selected)
	refScore := ScoreBlock(reference, e.cfg.MaxBlockTxs, target)
	header.EfficiencyScore = refScore

	e.cur = &round{
		height:    height,
		number:    number,
		start:     now,
		phase:     PhaseProposeWindow,
		collector: NewCollector(height, number, e.builders),
		votes:     NewVotePool(height, number, e.committee, e.cfg.QuorumFraction, e.cfg.MinParticipation),
		reference: reference,
		refScore:  refScore,
		target:    target,
	}
	e.metrics.RoundsStarted.Inc()
	e.log.Infow("round started", "height", height, "round", number,
		"mempool", len(snapshot), "reference_score", refScore, "target_price", target)
}

func (e *Engine) closeProposeWindowLocked() {
	proposals := e.cur.collector.Proposals()
	if len(proposals) == 0 {
		e.failLocked("no_proposals")
		return
	}

	vc := &ValidationContext{
		Config:           e.cfg,
		Parent:           e.head,
		Mempool:          e.pool.Pending(),
		TargetPointPrice: e.cur.target,
		ReferenceScore:   e.cur.refScore,
		Checker:          e.checker,
		Colors:           e.state,
	}
	ranked, err := ValidateAndRank(context.Background(), proposals, vc, func(p *types.BlockProposal, cause error) {
		e.metrics.ProposalsDropped.WithLabelValues(Reason(cause).String()).Inc()
		e.log.Warnw("proposal rejected", "height", p.Height, "round", p.Round,
			"proposer", p.ProposerID, "err", cause)
	})
	if err != nil {
		e.log.Errorw("proposal validation aborted", "err", err)
		e.failLocked("validation_aborted")
		return
	}
	if len(ranked) == 0 {
		e.failLocked("no_valid_proposals")
		return
	}
	e.cur.ranked = ranked
	e.cur.phase = PhaseVoting
	e.log.Infow("voting opened", "height", e.cur.height, "round", e.cur.number,
		"candidates", len(ranked), "leader", ranked[0].Proposal.ProposerID, "leader_score", ranked[0].VerifiedScore)
}

func (e *Engine) tallyLocked() {
	outcome, winner := e.cur.votes.Tally()
	e.metrics.Participation.Set(float64(e.cur.votes.Participation()))

	switch outcome {
	case OutcomeFinalized:
		rp := e.cur.rankedFor(winner)
		if rp == nil {
			// the committee finalized a block this node could not validate
			e.log.Errorw("winning hash not locally validated", "height", e.cur.height,
				"round", e.cur.number, "hash", winner)
			e.failLocked("unverified_winner")
			return
		}
		e.cur.winner = rp
		e.cur.phase = PhaseFinalize
	case OutcomeNoQuorum:
		e.failLocked("no_quorum")
	case OutcomeInsufficientParticipation:
		e.failLocked("insufficient_participation")
	default:
		e.failLocked("pending_tally")
	}
}

func (e *Engine) commitLocked() {
	rp := e.cur.winner
	block := rp.Proposal.Block
	blockHash := block.Hash()

	votes := e.cur.votes.VotesFor(blockHash)
	sort.Slice(votes, func(i, j int) bool { return votes[i].ValidatorID < votes[j].ValidatorID })
	for _, v := range votes {
		block.Header.CommitSignatures = append(block.Header.CommitSignatures, types.CommitSignature{
			ValidatorID: v.ValidatorID,
			Signature:   v.Signature,
		})
	}

	if _, err := e.state.Apply(block); err != nil {
		if errors.Is(err, state.ErrStateRootMismatch) {
			e.halted = true
			e.log.Errorw("state root mismatch on finalized block, halting",
				"height", e.cur.height, "round", e.cur.number, "hash", blockHash, "err", err)
			return
		}
		e.log.Errorw("block application failed", "height", e.cur.height,
			"round", e.cur.number, "hash", blockHash, "err", err)
		e.failLocked("apply_failed")
		return
	}

	e.pool.Remove(block.Transactions)
	e.head = block.Header
	e.cur.phase = PhaseCommitted
	e.metrics.BlocksFinalized.Inc()
	e.metrics.EfficiencyScore.Set(float64(rp.VerifiedScore))
	e.log.Infow("block committed", "height", block.Height(), "round", block.Round(),
		"hash", blockHash, "proposer", block.Header.ProposerID,
		"txs", len(block.Transactions), "score", rp.VerifiedScore)

	if e.onCompleted != nil {
		e.onCompleted(e.completedRecordLocked(rp, votes, blockHash))
	}
}

// completedRecordLocked builds the reward-layer record. The color validator
// of the round is the lexicographically smallest winning voter, which every
// node derives identically from the counted votes.
func (e *Engine) completedRecordLocked(rp *RankedProposal, winningVotes []*types.Vote, blockHash common.Hash) *rewards.CompletedRound {
	counted := e.cur.votes.All()
	sort.Slice(counted, func(i, j int) bool { return counted[i].ValidatorID < counted[j].ValidatorID })
	voters := make([]rewards.VoterInfo, 0, len(counted))
	for _, v := range counted {
		voters = append(voters, rewards.VoterInfo{ValidatorID: v.ValidatorID, BlockHash: v.BlockHash})
	}
	colorValidator := ""
	if len(winningVotes) > 0 {
		colorValidator = winningVotes[0].ValidatorID
	}
	return &rewards.CompletedRound{
		Height:           e.cur.height,
		Round:            e.cur.number,
		ProposerID:       rp.Proposal.ProposerID,
		BlockHash:        blockHash,
		EfficiencyScore:  rp.VerifiedScore,
		Voters:           voters,
		ColorValidatorID: colorValidator,
	}
}

func (e *Engine) failLocked(outcome string) {
	e.metrics.RoundsFailed.WithLabelValues(outcome).Inc()
	e.cur.phase = PhaseFailed
	e.log.Warnw("round failed", "height", e.cur.height, "round", e.cur.number, "outcome", outcome)
}
