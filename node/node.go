// Package node assembles the consensus stack into a runnable process:
// storage, account state, mempool, round engine, reward distribution and
// metrics, behind a role that decides which surfaces are active.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/SELF-HQ/self-chain-core/consensus/poai"
	"github.com/SELF-HQ/self-chain-core/core"
	"github.com/SELF-HQ/self-chain-core/core/state"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/rewards"
	"github.com/SELF-HQ/self-chain-core/selfdb"
	"github.com/SELF-HQ/self-chain-core/selfdb/leveldb"
	"github.com/SELF-HQ/self-chain-core/selfdb/memorydb"
)

var (
	ErrNotBuilder  = errors.New("node: role cannot build blocks")
	ErrNoProposals = errors.New("node: no ranked proposals to vote on")
)

// Node is one process of the network.
type Node struct {
	cfg  *Config
	role Role
	log  *zap.SugaredLogger
	key  ed25519.PrivateKey

	db       selfdb.KeyValueStore
	state    *state.StateDB
	pool     *core.Mempool
	engine   *poai.Engine
	registry *prometheus.Registry

	distributor rewards.Distributor
	blockReward *big.Int

	blocksBuilt prometheus.Counter
	votesCast   prometheus.Counter
}

// New wires a node from its config, signing key, committee and chain head.
func New(cfg *Config, key ed25519.PrivateKey, committee *types.Committee, head *types.BlockHeader, logger *zap.SugaredLogger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	role, err := ParseRole(cfg.Role)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("node", cfg.ID, "role", role)

	var db selfdb.KeyValueStore
	if cfg.DataDir != "" {
		db, err = leveldb.New(filepath.Join(cfg.DataDir, "chaindata"))
		if err != nil {
			return nil, fmt.Errorf("node: open database: %w", err)
		}
	} else {
		db = memorydb.New()
	}

	st := state.New(db)
	pool := core.NewMempool(cfg.Consensus.ChainID)
	engine, err := poai.NewEngine(cfg.Consensus, st, pool, committee, head, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	engine.SetMetrics(poai.NewMetrics(registry))

	n := &Node{
		cfg:         cfg,
		role:        role,
		log:         logger,
		key:         key,
		db:          db,
		state:       st,
		pool:        pool,
		engine:      engine,
		registry:    registry,
		distributor: rewards.NewSplitDistributor(cfg.TreasuryID),
		blockReward: new(big.Int).Set(rewards.DefaultBlockReward),
		blocksBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "node", Name: "blocks_built_total",
			Help: "Block proposals assembled by this node.",
		}),
		votesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "node", Name: "votes_cast_total",
			Help: "Ranked votes cast by this node.",
		}),
	}
	registry.MustRegister(n.blocksBuilt, n.votesCast)
	engine.OnCompleted(n.applyRewards)

	if role.CanBuild() {
		engine.RegisterBuilder(cfg.ID, ed25519.PublicFromPrivate(key))
	}
	return n, nil
}

// Engine exposes the round engine for proposal and vote submission.
func (n *Node) Engine() *poai.Engine { return n.engine }

// Mempool exposes the pending pool for transaction submission.
func (n *Node) Mempool() *core.Mempool { return n.pool }

// State exposes the account store.
func (n *Node) State() *state.StateDB { return n.state }

// Registry exposes the node's metric registry.
func (n *Node) Registry() *prometheus.Registry { return n.registry }

// ID returns the node identity.
func (n *Node) ID() string { return n.cfg.ID }

// Role returns the node role.
func (n *Node) Role() Role { return n.role }

// SetDistributor replaces the default 90/8/1/1 reward split.
func (n *Node) SetDistributor(d rewards.Distributor) { n.distributor = d }

// RegisterBuilder admits a remote builder's proposals.
func (n *Node) RegisterBuilder(id string, pub ed25519.PublicKey) {
	n.engine.RegisterBuilder(id, pub)
}

// Start opens the first round.
func (n *Node) Start() { n.engine.Start() }

// BuildProposal assembles, scores and signs a candidate block from the
// current mempool for the round in progress.
func (n *Node) BuildProposal() (*types.BlockProposal, error) {
	if !n.role.CanBuild() {
		return nil, fmt.Errorf("%w: %s", ErrNotBuilder, n.role)
	}
	head := n.engine.Head()
	height := n.engine.Height()
	roundNum := n.engine.RoundNumber()

	selected := poai.Select(n.pool.Pending(), n.cfg.Consensus.MaxBlockTxs)
	header := &types.BlockHeader{
		Height:       height,
		PreviousHash: head.Hash(),
		Timestamp:    uint64(n.engine.Now().Unix()),
		ProposerID:   n.cfg.ID,
		Round:        roundNum,
		ChainID:      n.cfg.Consensus.ChainID,
		PointPrice:   selected.AveragePointPrice(),
	}
	block := types.NewBlock(header, selected)
	root, err := n.state.DryRun(block)
	if err != nil {
		return nil, fmt.Errorf("node: stage block: %w", err)
	}
	header.StateRoot = root
	header.EfficiencyScore = poai.ScoreBlock(block, n.cfg.Consensus.MaxBlockTxs, n.engine.TargetPointPrice())

	proposal := types.NewBlockProposal(height, roundNum, n.cfg.ID, block)
	proposal.Sign(n.key)
	n.blocksBuilt.Inc()
	n.log.Infow("proposal built", "height", height, "round", roundNum,
		"txs", len(selected), "score", header.EfficiencyScore)
	return proposal, nil
}

// CastVote votes for the top-ranked verifiable proposal of the current
// round, submits the vote locally and returns it for gossip.
func (n *Node) CastVote() (*types.Vote, error) {
	ranked := n.engine.Ranked()
	if len(ranked) == 0 {
		return nil, ErrNoProposals
	}
	top := ranked[0]
	vote := types.NewVote(n.engine.Height(), n.engine.RoundNumber(),
		top.Proposal.Block.Hash(), top.VerifiedScore, n.cfg.ID)
	vote.Sign(n.key)
	if err := n.engine.SubmitVote(vote); err != nil {
		return nil, err
	}
	n.votesCast.Inc()
	return vote, nil
}

// Run drives the engine until ctx is cancelled. Coordinators call this;
// other roles advance through gossip-triggered submissions plus a slower
// poll.
func (n *Node) Run(ctx context.Context) error {
	tick := n.cfg.Consensus.RoundDuration / 60
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	n.engine.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.engine.Advance()
		}
	}
}

// applyRewards credits the reward distribution of a finalized round to the
// participants' accounts.
func (n *Node) applyRewards(cr *rewards.CompletedRound) {
	dist, err := n.distributor.Distribute(cr, n.blockReward)
	if err != nil {
		n.log.Warnw("reward distribution skipped", "height", cr.Height, "err", err)
		return
	}
	for id, amount := range dist {
		acct := n.state.GetAccount(id)
		acct.Balance.Add(acct.Balance, amount)
		n.state.SetAccount(acct)
	}
	n.log.Infow("rewards credited", "height", cr.Height, "round", cr.Round,
		"recipients", len(dist), "total", dist.Total())
}

// Close releases the node's storage.
func (n *Node) Close() error {
	return n.db.Close()
}
