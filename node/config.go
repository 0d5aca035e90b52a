package node

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/SELF-HQ/self-chain-core/params"
)

// DefaultSelfBond is the bond a standalone node stakes on itself when no
// staking registry is wired in.
func DefaultSelfBond() *big.Int { return big.NewInt(1) }

// Config is the full node configuration as loaded from the TOML file and
// CLI flags.
type Config struct {
	// ID identifies this node to the committee and in proposals. Defaults
	// to a fresh UUID when left empty.
	ID   string `toml:"id"`
	Role string `toml:"role"`

	// DataDir selects the persistent database location. Empty runs the
	// node on an in-memory store.
	DataDir string `toml:"data-dir"`

	// TreasuryID receives the treasury reward share and rounding dust.
	TreasuryID string `toml:"treasury-id"`

	Consensus *params.ConsensusConfig `toml:"consensus"`
}

// DefaultConfig returns a validator config with a generated id on the
// default chain parameters.
func DefaultConfig(chainID string) *Config {
	return &Config{
		ID:         uuid.NewString(),
		Role:       RoleValidator.String(),
		TreasuryID: "treasury",
		Consensus:  params.DefaultConsensusConfig(chainID),
	}
}

// Validate checks the node options and the embedded consensus options.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("node: id must not be empty")
	}
	if _, err := ParseRole(c.Role); err != nil {
		return err
	}
	if c.TreasuryID == "" {
		return errors.New("node: treasury-id must not be empty")
	}
	if c.Consensus == nil {
		return errors.New("node: consensus section missing")
	}
	if err := c.Consensus.Validate(); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	return nil
}
