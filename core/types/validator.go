package types

import (
	"math/big"
	"sort"

	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

// Validator is one committee member: a bonded, eligible identity permitted
// to vote in a round.
type Validator struct {
	ID        string
	PublicKey ed25519.PublicKey
	Bond      *big.Int
	Eligible  bool
}

// Bonded reports whether the validator has a positive bond.
func (v *Validator) Bonded() bool {
	return v.Bond != nil && v.Bond.Sign() > 0
}

// Committee is the set of validators eligible to vote in a round, indexed
// by validator id.
type Committee struct {
	members map[string]*Validator
}

// NewCommittee builds a committee from the eligible-and-bonded subset of vs.
func NewCommittee(vs []*Validator) *Committee {
	members := make(map[string]*Validator, len(vs))
	for _, v := range vs {
		if v.Eligible && v.Bonded() {
			members[v.ID] = v
		}
	}
	return &Committee{members: members}
}

// Member returns the committee member with the given id, nil if absent.
func (c *Committee) Member(id string) *Validator {
	return c.members[id]
}

// Contains reports whether id is part of the committee.
func (c *Committee) Contains(id string) bool {
	_, ok := c.members[id]
	return ok
}

// Size returns the number of committee members.
func (c *Committee) Size() int { return len(c.members) }

// IDs returns the member ids in ascending lexicographic order.
func (c *Committee) IDs() []string {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
