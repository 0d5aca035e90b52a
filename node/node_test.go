package node

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SELF-HQ/self-chain-core/consensus/poai"
	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/params"
)

func testKey(t *testing.T, seed byte) ed25519.PrivateKey {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return ed25519.NewKeyFromSeed(s)
}

func testNode(t *testing.T, role Role) (*Node, *poai.ManualClock) {
	t.Helper()
	cfg := &Config{
		ID:         "n1",
		Role:       role.String(),
		TreasuryID: "treasury",
		Consensus:  params.TestConsensusConfig(),
	}
	cfg.Consensus.ClockDrift = 0

	key := testKey(t, 0x77)
	committee := types.NewCommittee([]*types.Validator{{
		ID:        "n1",
		PublicKey: ed25519.PublicFromPrivate(key),
		Bond:      DefaultSelfBond(),
		Eligible:  true,
	}})
	genesis := types.GenesisHeader(cfg.Consensus.ChainID)

	n, err := New(cfg, key, committee, genesis, nil)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })

	clock := poai.NewManualClock(time.Unix(1_700_000_000, 0))
	n.Engine().SetClock(clock)
	return n, clock
}

func fundAndFill(t *testing.T, n *Node, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		sender := fmt.Sprintf("wallet-%03d", i)
		acct := types.NewAccount(sender)
		acct.Balance = big.NewInt(1_000_000)
		n.State().SetAccount(acct)

		tx := types.NewTransaction(1, n.cfg.Consensus.ChainID, sender, "", nil, uint64(100+i*10), uint64(1000+i))
		tx.Sign(testKey(t, byte(i+1)))
		require.NoError(t, n.Mempool().Add(tx))
	}
}

func TestRoleParsing(t *testing.T) {
	for _, role := range []Role{RoleValidator, RoleBuilder, RoleCoordinator} {
		parsed, err := ParseRole(role.String())
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}
	_, err := ParseRole("janitor")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestValidatorCannotBuild(t *testing.T) {
	n, _ := testNode(t, RoleValidator)
	n.Start()
	_, err := n.BuildProposal()
	require.ErrorIs(t, err, ErrNotBuilder)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig("self-chain-test")
	require.NoError(t, cfg.Validate())
	require.NotEmpty(t, cfg.ID, "default config must generate an id")

	cfg.Role = "janitor"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig("self-chain-test")
	cfg.TreasuryID = ""
	require.Error(t, cfg.Validate())
}

func TestSingleNodeRound(t *testing.T) {
	n, clock := testNode(t, RoleBuilder)
	fundAndFill(t, n, 4)
	n.Start()

	p, err := n.BuildProposal()
	require.NoError(t, err)
	require.False(t, p.Block.Header.StateRoot.IsZero(),
		"built block must declare the post-apply state root")
	require.Equal(t, uint64(clock.Now().Unix()), p.Block.Header.Timestamp,
		"header timestamp must come from the engine clock")
	require.NoError(t, n.Engine().SubmitProposal(p))

	proposeWindow := n.cfg.Consensus.ProposeDeadline(clock.Now()).Sub(clock.Now())
	clock.Advance(proposeWindow)
	require.Equal(t, poai.PhaseVoting, n.Engine().Advance())

	vote, err := n.CastVote()
	require.NoError(t, err)
	require.Equal(t, p.Block.Hash(), vote.BlockHash)

	voteWindow := n.cfg.Consensus.VoteDeadline(clock.Now()).Sub(n.cfg.Consensus.ProposeDeadline(clock.Now()))
	clock.Advance(voteWindow)
	n.Engine().Advance()

	head := n.Engine().Head()
	require.Equal(t, uint64(1), head.Height)
	require.Equal(t, p.Block.Hash(), head.Hash())
	require.Zero(t, n.Mempool().Len(), "mempool must be pruned after commit")

	// the node is builder, sole voter and color validator, so it collects
	// everything except the treasury share
	selfBalance := n.State().GetAccount("n1").Balance
	treasury := n.State().GetAccount("treasury").Balance
	require.Equal(t, int64(990_000_000), selfBalance.Int64())
	require.Equal(t, int64(1_000_000_000), new(big.Int).Add(selfBalance, treasury).Int64())
}

func TestCastVoteWithoutCandidates(t *testing.T) {
	n, _ := testNode(t, RoleValidator)
	n.Start()
	_, err := n.CastVote()
	require.ErrorIs(t, err, ErrNoProposals)
}
