package poai

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/SELF-HQ/self-chain-core/core"
	"github.com/SELF-HQ/self-chain-core/core/state"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/params"
	"github.com/SELF-HQ/self-chain-core/rewards"
	"github.com/SELF-HQ/self-chain-core/selfdb/memorydb"
)

type engineHarness struct {
	cfg        *params.ConsensusConfig
	clock      *ManualClock
	state      *state.StateDB
	pool       *core.Mempool
	engine     *Engine
	genesis    *types.BlockHeader
	builderKey ed25519.PrivateKey
	voterKeys  map[string]ed25519.PrivateKey
	completed  []*rewards.CompletedRound
}

func newEngineHarness(t *testing.T, committeeSize int) *engineHarness {
	t.Helper()
	cfg := params.TestConsensusConfig()
	cfg.ClockDrift = 0

	st := state.New(memorydb.New())
	pool := core.NewMempool(cfg.ChainID)
	committee, voterKeys := testCommittee(t, committeeSize)
	genesis := types.GenesisHeader(cfg.ChainID)

	engine, err := NewEngine(cfg, st, pool, committee, genesis, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := &engineHarness{
		cfg:        cfg,
		clock:      NewManualClock(time.Unix(1_700_000_000, 0)),
		state:      st,
		pool:       pool,
		engine:     engine,
		genesis:    genesis,
		builderKey: testKey(t, 0xD0),
		voterKeys:  voterKeys,
	}
	engine.SetClock(h.clock)
	engine.RegisterBuilder("builder-a", ed25519.PublicFromPrivate(h.builderKey))
	engine.OnCompleted(func(cr *rewards.CompletedRound) { h.completed = append(h.completed, cr) })
	return h
}

// fundMempool installs funded accounts and admits one transaction each.
func (h *engineHarness) fundMempool(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		sender := fmt.Sprintf("wallet-%03d", i)
		acct := types.NewAccount(sender)
		acct.Balance = big.NewInt(1_000_000)
		h.state.SetAccount(acct)

		tx := signedTx(t, testKey(t, byte(i+1)), sender, 1, uint64(100+i*10), uint64(1000+i))
		if err := h.pool.Add(tx); err != nil {
			t.Fatalf("mempool add: %v", err)
		}
	}
}

func (h *engineHarness) buildProposal(t *testing.T) *types.BlockProposal {
	return h.buildProposalFrom(t, "builder-a", h.builderKey)
}

func (h *engineHarness) buildProposalFrom(t *testing.T, id string, key ed25519.PrivateKey) *types.BlockProposal {
	t.Helper()
	head := h.engine.Head()
	selected := Select(h.pool.Pending(), h.cfg.MaxBlockTxs)
	header := &types.BlockHeader{
		Height:       h.engine.Height(),
		PreviousHash: head.Hash(),
		Timestamp:    uint64(h.clock.Now().Unix()),
		ProposerID:   id,
		Round:        h.engine.RoundNumber(),
		ChainID:      h.cfg.ChainID,
		PointPrice:   selected.AveragePointPrice(),
	}
	block := types.NewBlock(header, selected)
	root, err := h.state.DryRun(block)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	header.StateRoot = root
	header.EfficiencyScore = ScoreBlock(block, h.cfg.MaxBlockTxs, h.engine.TargetPointPrice())
	p := types.NewBlockProposal(header.Height, header.Round, id, block)
	p.Sign(key)
	return p
}

func (h *engineHarness) voteAll(t *testing.T, target *types.BlockProposal) {
	t.Helper()
	for id, key := range h.voterKeys {
		v := types.NewVote(h.engine.Height(), h.engine.RoundNumber(),
			target.Block.Hash(), target.DeclaredScore(), id)
		v.Sign(key)
		if err := h.engine.SubmitVote(v); err != nil {
			t.Fatalf("vote from %s: %v", id, err)
		}
	}
}

func (h *engineHarness) proposeWindow() time.Duration {
	return h.cfg.ProposeDeadline(time.Unix(0, 0)).Sub(time.Unix(0, 0))
}

func (h *engineHarness) voteWindow() time.Duration {
	return h.cfg.VoteDeadline(time.Unix(0, 0)).Sub(h.cfg.ProposeDeadline(time.Unix(0, 0)))
}

func TestRoundLifecycle(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 5)
	h.engine.Start()

	if have := h.engine.Phase(); have != PhaseProposeWindow {
		t.Fatalf("phase after start: have %s, want %s", have, PhaseProposeWindow)
	}

	p := h.buildProposal(t)
	if err := h.engine.SubmitProposal(p); err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}

	// premature vote is refused
	early := types.NewVote(1, 0, p.Block.Hash(), p.DeclaredScore(), "v0")
	early.Sign(h.voterKeys["v0"])
	if err := h.engine.SubmitVote(early); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("early vote: have %v, want %v", err, ErrWrongPhase)
	}

	h.clock.Advance(h.proposeWindow())
	if have := h.engine.Advance(); have != PhaseVoting {
		t.Fatalf("phase after propose close: have %s, want %s", have, PhaseVoting)
	}
	ranked := h.engine.Ranked()
	if len(ranked) != 1 || ranked[0].Proposal.ProposerID != "builder-a" {
		t.Fatalf("ranked: have %d entries, want the builder-a proposal", len(ranked))
	}

	h.voteAll(t, p)
	h.clock.Advance(h.voteWindow())
	if have := h.engine.Advance(); have != PhaseProposeWindow {
		t.Fatalf("phase after commit: have %s, want %s", have, PhaseProposeWindow)
	}

	// the block is committed and the next height is open
	head := h.engine.Head()
	if have, want := head.Height, uint64(1); have != want {
		t.Fatalf("head height: have %d, want %d", have, want)
	}
	if head.Hash() != p.Block.Hash() {
		t.Fatalf("head hash: have %s, want %s", head.Hash(), p.Block.Hash())
	}
	if have, want := len(head.CommitSignatures), 3; have != want {
		t.Fatalf("commit signatures: have %d, want %d", have, want)
	}
	if head.StateRoot.IsZero() {
		t.Fatal("committed header does not declare a state root")
	}
	if have, want := head.StateRoot, h.state.ComputeRoot(); have != want {
		t.Fatalf("declared state root: have %s, want %s", have, want)
	}
	if have, want := h.engine.Height(), uint64(2); have != want {
		t.Fatalf("next height: have %d, want %d", have, want)
	}
	if have := h.engine.RoundNumber(); have != 0 {
		t.Fatalf("round number reset: have %d, want 0", have)
	}

	// applied effects: nonce advanced, balance charged, color moved
	acct := h.state.GetAccount("wallet-000")
	if have, want := acct.Nonce, uint64(1); have != want {
		t.Fatalf("nonce: have %d, want %d", have, want)
	}
	if acct.Color == types.InitialColor {
		t.Fatal("color did not advance")
	}
	if have := h.pool.Len(); have != 0 {
		t.Fatalf("mempool after commit: have %d pending, want 0", have)
	}

	if len(h.completed) != 1 {
		t.Fatalf("completed rounds: have %d, want 1", len(h.completed))
	}
	cr := h.completed[0]
	if cr.ProposerID != "builder-a" || cr.Height != 1 || len(cr.Voters) != 3 {
		t.Fatalf("completed record: %+v", cr)
	}
	if cr.ColorValidatorID != "v0" {
		t.Fatalf("color validator: have %s, want v0", cr.ColorValidatorID)
	}
}

func TestLateProposalRejected(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 3)
	h.engine.Start()

	p := h.buildProposal(t)

	// one round unit past the propose deadline
	unit := h.cfg.RoundDuration / params.RoundUnits
	h.clock.Advance(h.proposeWindow() + unit)
	if err := h.engine.SubmitProposal(p); !errors.Is(err, ErrLateProposal) {
		t.Fatalf("late proposal: have %v, want %v", err, ErrLateProposal)
	}
}

func TestFailedRoundIncrementsRound(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.engine.Start()

	// no proposals arrive, the window closes empty
	h.clock.Advance(h.proposeWindow())
	if have := h.engine.Advance(); have != PhaseProposeWindow {
		t.Fatalf("phase after empty window: have %s, want %s", have, PhaseProposeWindow)
	}
	if have, want := h.engine.Height(), uint64(1); have != want {
		t.Fatalf("height after failed round: have %d, want %d", have, want)
	}
	if have, want := h.engine.RoundNumber(), uint64(1); have != want {
		t.Fatalf("round after failed round: have %d, want %d", have, want)
	}
}

func TestNoQuorumFailsRound(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 3)
	h.engine.Start()

	p := h.buildProposal(t)
	if err := h.engine.SubmitProposal(p); err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	h.clock.Advance(h.proposeWindow())
	if have := h.engine.Advance(); have != PhaseVoting {
		t.Fatalf("phase: have %s, want %s", have, PhaseVoting)
	}

	// two voters split, one silent: participation 2 of 3 clears the 60%
	// floor, but a 1-1 split leaves every hash below the quorum of 2
	va := types.NewVote(1, 0, p.Block.Hash(), p.DeclaredScore(), "v0")
	va.Sign(h.voterKeys["v0"])
	if err := h.engine.SubmitVote(va); err != nil {
		t.Fatalf("vote v0: %v", err)
	}
	vb := types.NewVote(1, 0, h.genesis.Hash(), 0, "v1")
	vb.Sign(h.voterKeys["v1"])
	if err := h.engine.SubmitVote(vb); err != nil {
		t.Fatalf("vote v1: %v", err)
	}

	h.clock.Advance(h.voteWindow())
	h.engine.Advance()
	if have, want := h.engine.Height(), uint64(1); have != want {
		t.Fatalf("height after no quorum: have %d, want %d", have, want)
	}
	if have, want := h.engine.RoundNumber(), uint64(1); have != want {
		t.Fatalf("round after no quorum: have %d, want %d", have, want)
	}
	if len(h.completed) != 0 {
		t.Fatalf("completed rounds after failure: have %d, want 0", len(h.completed))
	}
}

func TestQuorumClosesVotingEarly(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 3)
	h.engine.Start()

	p := h.buildProposal(t)
	if err := h.engine.SubmitProposal(p); err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	h.clock.Advance(h.proposeWindow())
	if have := h.engine.Advance(); have != PhaseVoting {
		t.Fatalf("phase: have %s, want %s", have, PhaseVoting)
	}

	// unanimous votes arrive mid-window; the next Advance must tally and
	// commit without waiting for the vote deadline
	h.voteAll(t, p)
	if have := h.engine.Advance(); have != PhaseProposeWindow {
		t.Fatalf("phase after quorum: have %s, want %s", have, PhaseProposeWindow)
	}
	head := h.engine.Head()
	if have, want := head.Height, uint64(1); have != want {
		t.Fatalf("head height: have %d, want %d", have, want)
	}
	if head.Hash() != p.Block.Hash() {
		t.Fatalf("head hash: have %s, want %s", head.Hash(), p.Block.Hash())
	}
}

func TestBuilderRegisteredMidRound(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 3)
	h.engine.Start()

	// registration lands after the round opened: the running round keeps
	// its collector snapshot, the next round picks the new builder up
	keyB := testKey(t, 0xD1)
	h.engine.RegisterBuilder("builder-b", ed25519.PublicFromPrivate(keyB))

	p := h.buildProposalFrom(t, "builder-b", keyB)
	if err := h.engine.SubmitProposal(p); !errors.Is(err, ErrUnknownProposer) {
		t.Fatalf("mid-round submission: have %v, want %v", err, ErrUnknownProposer)
	}

	h.clock.Advance(h.proposeWindow())
	if have := h.engine.Advance(); have != PhaseProposeWindow {
		t.Fatalf("phase after empty window: have %s, want %s", have, PhaseProposeWindow)
	}
	p = h.buildProposalFrom(t, "builder-b", keyB)
	if err := h.engine.SubmitProposal(p); err != nil {
		t.Fatalf("submission in next round: %v", err)
	}
}

func TestStateRootMismatchHalts(t *testing.T) {
	h := newEngineHarness(t, 3)
	h.fundMempool(t, 3)
	h.engine.Start()

	// a proposal declaring a bogus state root survives validation (the
	// root is only checked on apply) and must halt the engine on commit
	head := h.engine.Head()
	selected := Select(h.pool.Pending(), h.cfg.MaxBlockTxs)
	header := &types.BlockHeader{
		Height:       1,
		PreviousHash: head.Hash(),
		Timestamp:    uint64(h.clock.Now().Unix()),
		ProposerID:   "builder-a",
		ChainID:      h.cfg.ChainID,
		PointPrice:   selected.AveragePointPrice(),
	}
	header.StateRoot[0] = 0xFF
	block := types.NewBlock(header, selected)
	header.EfficiencyScore = ScoreBlock(block, h.cfg.MaxBlockTxs, h.engine.TargetPointPrice())
	p := types.NewBlockProposal(1, 0, "builder-a", block)
	p.Sign(h.builderKey)

	if err := h.engine.SubmitProposal(p); err != nil {
		t.Fatalf("SubmitProposal: %v", err)
	}
	h.clock.Advance(h.proposeWindow())
	h.engine.Advance()
	h.voteAll(t, p)
	h.clock.Advance(h.voteWindow())

	if have := h.engine.Advance(); have != PhaseFailed {
		t.Fatalf("phase after bad root: have %s, want %s", have, PhaseFailed)
	}
	if err := h.engine.SubmitProposal(h.buildProposal(t)); !errors.Is(err, ErrHalted) {
		t.Fatalf("submission after halt: have %v, want %v", err, ErrHalted)
	}

	// the bogus block must not have touched state
	if have := h.state.GetAccount("wallet-000").Nonce; have != 0 {
		t.Fatalf("nonce after rolled-back block: have %d, want 0", have)
	}
}
