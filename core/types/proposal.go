package types

import (
	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

// BlockProposal is a candidate block submitted by a builder during the
// propose window, carrying the proposer's self-declared efficiency score
// inside the block header.
//
// Canonical encoding order: height, round, proposer_id, block_hash. The
// signature binds the proposer to the full block content through the block
// hash, which in turn commits to the transaction sequence.
type BlockProposal struct {
	Height     uint64
	Round      uint64
	ProposerID string
	Block      *Block
	Signature  []byte
}

// NewBlockProposal creates an unsigned proposal for a block.
func NewBlockProposal(height, round uint64, proposerID string, block *Block) *BlockProposal {
	return &BlockProposal{
		Height:     height,
		Round:      round,
		ProposerID: proposerID,
		Block:      block,
	}
}

func (p *BlockProposal) encodeCanonical() []byte {
	b := make([]byte, 0, 56+len(p.ProposerID))
	b = appendUint64(b, p.Height)
	b = appendUint64(b, p.Round)
	b = appendString(b, p.ProposerID)
	blockHash := p.Block.Hash()
	b = append(b, blockHash[:]...)
	return b
}

// Hash returns the domain-separated proposal hash.
func (p *BlockProposal) Hash() common.Hash {
	return crypto.DomainHash(crypto.ProposalPrefix, p.encodeCanonical())
}

// SigningMessage is the byte string the proposer signs.
func (p *BlockProposal) SigningMessage() []byte {
	return crypto.SigningMessage(crypto.ProposalPrefix, p.Hash())
}

// Sign attaches the proposer's signature.
func (p *BlockProposal) Sign(priv ed25519.PrivateKey) {
	p.Signature = ed25519.Sign(priv, p.SigningMessage())
}

// VerifySignature checks the proposal signature under the proposer's key.
func (p *BlockProposal) VerifySignature(pub ed25519.PublicKey) bool {
	return ed25519.Verify(pub, p.SigningMessage(), p.Signature)
}

// DeclaredScore returns the self-declared efficiency score from the header.
func (p *BlockProposal) DeclaredScore() uint64 {
	return p.Block.Header.EfficiencyScore
}
