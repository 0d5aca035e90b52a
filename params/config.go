// Package params holds the configuration surface of the consensus engine:
// round timing, quorum thresholds, block limits and chain identity.
package params

import (
	"errors"
	"fmt"
	"time"
)

// Round timing and threshold defaults. Window fractions are expressed over
// RoundUnits time units of the round, matching the 50/8/2-of-60 protocol
// schedule.
const (
	DefaultRoundDuration = 60 * time.Second
	MinRoundDuration     = 30 * time.Second
	MaxRoundDuration     = 300 * time.Second

	RoundUnits           = 60
	DefaultProposeUnits  = 50
	DefaultVoteUnits     = 8
	DefaultFinalizeUnits = 2

	DefaultMaxBlockTxs   = 1000
	DefaultMaxBlockBytes = 1_000_000

	DefaultClockDrift = 5 * time.Second
)

// Fraction is an exact rational threshold. Consensus arithmetic never uses
// floating point; comparisons cross-multiply.
type Fraction struct {
	Num uint64 `toml:"num"`
	Den uint64 `toml:"den"`
}

var (
	DefaultQuorumFraction     = Fraction{2, 3}
	DefaultMinParticipation   = Fraction{3, 5}
	DefaultSelectionTolerance = Fraction{15, 100}
)

// CeilOf returns the smallest integer count such that count/total >= f.
func (f Fraction) CeilOf(total int) int {
	if total <= 0 {
		return 0
	}
	return int((uint64(total)*f.Num + f.Den - 1) / f.Den)
}

// AtMost reports whether part/total <= f.
func (f Fraction) AtMost(part, total uint64) bool {
	return part*f.Den <= total*f.Num
}

// Valid reports whether the fraction is a well-formed proper threshold.
func (f Fraction) Valid() bool {
	return f.Den != 0 && f.Num <= f.Den
}

func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

// ConsensusConfig is the full recognized option set of the round engine.
type ConsensusConfig struct {
	ChainID string `toml:"chain-id"`

	RoundDuration time.Duration `toml:"round-duration"`

	// Phase windows in round units out of RoundUnits. Propose + vote +
	// finalize must not exceed RoundUnits.
	ProposeUnits  uint64 `toml:"propose-units"`
	VoteUnits     uint64 `toml:"vote-units"`
	FinalizeUnits uint64 `toml:"finalize-units"`

	QuorumFraction     Fraction `toml:"quorum-fraction"`
	MinParticipation   Fraction `toml:"min-participation"`
	SelectionTolerance Fraction `toml:"selection-tolerance"`

	MaxBlockTxs   int `toml:"max-block-txs"`
	MaxBlockBytes int `toml:"max-block-bytes"`

	ClockDrift time.Duration `toml:"clock-drift"`
}

// DefaultConsensusConfig returns the protocol defaults for chainID.
func DefaultConsensusConfig(chainID string) *ConsensusConfig {
	return &ConsensusConfig{
		ChainID:            chainID,
		RoundDuration:      DefaultRoundDuration,
		ProposeUnits:       DefaultProposeUnits,
		VoteUnits:          DefaultVoteUnits,
		FinalizeUnits:      DefaultFinalizeUnits,
		QuorumFraction:     DefaultQuorumFraction,
		MinParticipation:   DefaultMinParticipation,
		SelectionTolerance: DefaultSelectionTolerance,
		MaxBlockTxs:        DefaultMaxBlockTxs,
		MaxBlockBytes:      DefaultMaxBlockBytes,
		ClockDrift:         DefaultClockDrift,
	}
}

// TestConsensusConfig returns a config with the shortest legal round for
// unit tests driven by a simulated clock.
func TestConsensusConfig() *ConsensusConfig {
	cfg := DefaultConsensusConfig("self-chain-test")
	cfg.RoundDuration = MinRoundDuration
	return cfg
}

// Validate checks every recognized option. Returned errors name the option.
func (c *ConsensusConfig) Validate() error {
	if c.ChainID == "" {
		return errors.New("params: chain-id must not be empty")
	}
	if c.RoundDuration < MinRoundDuration || c.RoundDuration > MaxRoundDuration {
		return fmt.Errorf("params: round-duration %s outside [%s, %s]",
			c.RoundDuration, MinRoundDuration, MaxRoundDuration)
	}
	if c.ProposeUnits == 0 || c.VoteUnits == 0 || c.FinalizeUnits == 0 {
		return errors.New("params: phase windows must be positive")
	}
	if c.ProposeUnits+c.VoteUnits+c.FinalizeUnits > RoundUnits {
		return fmt.Errorf("params: phase windows exceed %d round units", RoundUnits)
	}
	if !c.QuorumFraction.Valid() || !c.MinParticipation.Valid() || !c.SelectionTolerance.Valid() {
		return errors.New("params: threshold fractions must be proper rationals")
	}
	if c.MaxBlockTxs <= 0 {
		return errors.New("params: max-block-txs must be positive")
	}
	if c.MaxBlockBytes <= 0 {
		return errors.New("params: max-block-bytes must be positive")
	}
	if c.ClockDrift < 0 {
		return errors.New("params: clock-drift must not be negative")
	}
	return nil
}

func (c *ConsensusConfig) unitDuration() time.Duration {
	return c.RoundDuration / RoundUnits
}

// ProposeDeadline is the end of the propose window for a round started at start.
func (c *ConsensusConfig) ProposeDeadline(start time.Time) time.Time {
	return start.Add(time.Duration(c.ProposeUnits) * c.unitDuration())
}

// VoteDeadline is the end of the vote window for a round started at start.
func (c *ConsensusConfig) VoteDeadline(start time.Time) time.Time {
	return c.ProposeDeadline(start).Add(time.Duration(c.VoteUnits) * c.unitDuration())
}

// FinalizeDeadline is the end of the finalize window for a round started at start.
func (c *ConsensusConfig) FinalizeDeadline(start time.Time) time.Time {
	return c.VoteDeadline(start).Add(time.Duration(c.FinalizeUnits) * c.unitDuration())
}
