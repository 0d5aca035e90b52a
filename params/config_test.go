package params

import (
	"testing"
	"time"
)

func TestFractionCeilOf(t *testing.T) {
	tests := []struct {
		f     Fraction
		total int
		want  int
	}{
		{Fraction{2, 3}, 10, 7},
		{Fraction{2, 3}, 9, 6},
		{Fraction{2, 3}, 3, 2},
		{Fraction{2, 3}, 1, 1},
		{Fraction{3, 5}, 10, 6},
		{Fraction{3, 5}, 3, 2},
		{Fraction{1, 1}, 4, 4},
		{Fraction{2, 3}, 0, 0},
	}
	for _, tt := range tests {
		if have := tt.f.CeilOf(tt.total); have != tt.want {
			t.Errorf("%s of %d: have %d, want %d", tt.f, tt.total, have, tt.want)
		}
	}
}

func TestFractionAtMost(t *testing.T) {
	tol := Fraction{15, 100}
	if !tol.AtMost(3, 20) {
		t.Error("3/20 should sit exactly on 15%")
	}
	if tol.AtMost(4, 20) {
		t.Error("4/20 exceeds 15%")
	}
	if !tol.AtMost(0, 20) {
		t.Error("0/20 is within any tolerance")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConsensusConfig("self-chain-test").Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*ConsensusConfig)
	}{
		{"empty chain id", func(c *ConsensusConfig) { c.ChainID = "" }},
		{"round too short", func(c *ConsensusConfig) { c.RoundDuration = 10 * time.Second }},
		{"round too long", func(c *ConsensusConfig) { c.RoundDuration = time.Hour }},
		{"zero propose window", func(c *ConsensusConfig) { c.ProposeUnits = 0 }},
		{"windows overflow round", func(c *ConsensusConfig) { c.ProposeUnits = 55; c.VoteUnits = 10 }},
		{"zero denominator", func(c *ConsensusConfig) { c.QuorumFraction = Fraction{1, 0} }},
		{"improper fraction", func(c *ConsensusConfig) { c.MinParticipation = Fraction{7, 5} }},
		{"zero tx limit", func(c *ConsensusConfig) { c.MaxBlockTxs = 0 }},
		{"zero byte limit", func(c *ConsensusConfig) { c.MaxBlockBytes = 0 }},
		{"negative drift", func(c *ConsensusConfig) { c.ClockDrift = -time.Second }},
	}
	for _, tt := range tests {
		cfg := DefaultConsensusConfig("self-chain-test")
		tt.mut(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestPhaseDeadlines(t *testing.T) {
	cfg := DefaultConsensusConfig("self-chain-test")
	start := time.Unix(1_700_000_000, 0)

	// 50/8/2 of 60 over a 60 second round
	if have, want := cfg.ProposeDeadline(start), start.Add(50*time.Second); !have.Equal(want) {
		t.Fatalf("propose deadline: have %s, want %s", have, want)
	}
	if have, want := cfg.VoteDeadline(start), start.Add(58*time.Second); !have.Equal(want) {
		t.Fatalf("vote deadline: have %s, want %s", have, want)
	}
	if have, want := cfg.FinalizeDeadline(start), start.Add(60*time.Second); !have.Equal(want) {
		t.Fatalf("finalize deadline: have %s, want %s", have, want)
	}
}
