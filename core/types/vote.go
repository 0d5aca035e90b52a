package types

import (
	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

// Vote is a single ranked-choice vote: the validator names the block hash of
// the proposal it judges best for (height, round). Exactly one vote per
// validator per round is counted.
//
// Canonical encoding order: height, round, block_hash, efficiency_score,
// validator_id.
type Vote struct {
	Height          uint64
	Round           uint64
	BlockHash       common.Hash
	EfficiencyScore uint64
	ValidatorID     string
	Signature       []byte
}

// NewVote creates an unsigned ranked vote.
func NewVote(height, round uint64, blockHash common.Hash, score uint64, validatorID string) *Vote {
	return &Vote{
		Height:          height,
		Round:           round,
		BlockHash:       blockHash,
		EfficiencyScore: score,
		ValidatorID:     validatorID,
	}
}

func (v *Vote) encodeCanonical() []byte {
	b := make([]byte, 0, 64+len(v.ValidatorID))
	b = appendUint64(b, v.Height)
	b = appendUint64(b, v.Round)
	b = append(b, v.BlockHash[:]...)
	b = appendUint64(b, v.EfficiencyScore)
	b = appendString(b, v.ValidatorID)
	return b
}

// Hash returns the domain-separated vote hash.
func (v *Vote) Hash() common.Hash {
	return crypto.DomainHash(crypto.RankedVotePrefix, v.encodeCanonical())
}

// SigningMessage is the byte string the validator signs.
func (v *Vote) SigningMessage() []byte {
	return crypto.SigningMessage(crypto.RankedVotePrefix, v.Hash())
}

// Sign attaches the validator's signature.
func (v *Vote) Sign(priv ed25519.PrivateKey) {
	v.Signature = ed25519.Sign(priv, v.SigningMessage())
}

// VerifySignature checks the vote signature under the committee member's key.
func (v *Vote) VerifySignature(pub ed25519.PublicKey) bool {
	return ed25519.Verify(pub, v.SigningMessage(), v.Signature)
}
