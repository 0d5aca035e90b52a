package types

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
)

var (
	ErrBadHeight      = errors.New("types: non-contiguous block height")
	ErrBadParentHash  = errors.New("types: previous hash does not match parent")
	ErrBadTxRoot      = errors.New("types: transactions root mismatch")
	ErrWrongChain     = errors.New("types: wrong chain id")
	ErrTooManyTxs     = errors.New("types: block exceeds transaction limit")
	ErrBlockOversized = errors.New("types: block exceeds byte limit")
)

// CommitSignature is one committee member's finality signature over a block
// header hash.
type CommitSignature struct {
	ValidatorID string
	Signature   []byte
}

// BlockHeader carries the consensus metadata of a block.
//
// The header hash covers every field except CommitSignatures, which are
// collected after the hash is fixed.
//
// Canonical encoding order: height, previous_hash, timestamp, state_root,
// transactions_root, proposer_id, round, chain_id, efficiency_score,
// point_price.
type BlockHeader struct {
	Height          uint64
	PreviousHash    common.Hash
	Timestamp       uint64
	StateRoot       common.Hash
	TxRoot          common.Hash
	ProposerID      string
	Round           uint64
	ChainID         string
	EfficiencyScore uint64
	PointPrice      uint64

	CommitSignatures []CommitSignature

	hash atomic.Value
}

// GenesisHeader returns the height-zero header for a chain.
func GenesisHeader(chainID string) *BlockHeader {
	return &BlockHeader{ChainID: chainID}
}

func (h *BlockHeader) encodeCanonical() []byte {
	b := make([]byte, 0, 160+len(h.ProposerID)+len(h.ChainID))
	b = appendUint64(b, h.Height)
	b = append(b, h.PreviousHash[:]...)
	b = appendUint64(b, h.Timestamp)
	b = append(b, h.StateRoot[:]...)
	b = append(b, h.TxRoot[:]...)
	b = appendString(b, h.ProposerID)
	b = appendUint64(b, h.Round)
	b = appendString(b, h.ChainID)
	b = appendUint64(b, h.EfficiencyScore)
	b = appendUint64(b, h.PointPrice)
	return b
}

// Hash returns the domain-separated header hash. Cached after first use;
// headers must not be mutated once hashed.
func (h *BlockHeader) Hash() common.Hash {
	if v := h.hash.Load(); v != nil {
		return v.(common.Hash)
	}
	sum := crypto.DomainHash(crypto.BlockHeaderPrefix, h.encodeCanonical())
	h.hash.Store(sum)
	return sum
}

// SigningMessage is the byte string committee members sign to commit the block.
func (h *BlockHeader) SigningMessage() []byte {
	return crypto.SigningMessage(crypto.BlockHeaderPrefix, h.Hash())
}

// Copy returns a deep copy with an unset hash cache.
func (h *BlockHeader) Copy() *BlockHeader {
	cpy := &BlockHeader{
		Height:          h.Height,
		PreviousHash:    h.PreviousHash,
		Timestamp:       h.Timestamp,
		StateRoot:       h.StateRoot,
		TxRoot:          h.TxRoot,
		ProposerID:      h.ProposerID,
		Round:           h.Round,
		ChainID:         h.ChainID,
		EfficiencyScore: h.EfficiencyScore,
		PointPrice:      h.PointPrice,
	}
	for _, cs := range h.CommitSignatures {
		cpy.CommitSignatures = append(cpy.CommitSignatures, CommitSignature{
			ValidatorID: cs.ValidatorID,
			Signature:   append([]byte(nil), cs.Signature...),
		})
	}
	return cpy
}

// Block is a header plus an ordered transaction sequence.
type Block struct {
	Header       *BlockHeader
	Transactions Transactions
}

// NewBlock assembles a block and fills in the transactions root.
func NewBlock(header *BlockHeader, txs Transactions) *Block {
	header.TxRoot = DeriveTxRoot(txs)
	return &Block{Header: header, Transactions: txs}
}

// Hash is the block identity, equal to the header hash.
func (b *Block) Hash() common.Hash { return b.Header.Hash() }

// Height returns the block height.
func (b *Block) Height() uint64 { return b.Header.Height }

// Round returns the consensus round the block was produced in.
func (b *Block) Round() uint64 { return b.Header.Round }

// Size returns the encoded byte size of the block body plus header.
func (b *Block) Size() int {
	return len(b.Header.encodeCanonical()) + b.Transactions.EncodedSize()
}

// SanityCheck validates the block's internal structure and its linkage to
// the parent header under the given limits.
func (b *Block) SanityCheck(parent *BlockHeader, maxTxs, maxBytes int) error {
	h := b.Header
	if h.ChainID != parent.ChainID {
		return fmt.Errorf("%w: have %q want %q", ErrWrongChain, h.ChainID, parent.ChainID)
	}
	if h.Height != parent.Height+1 {
		return fmt.Errorf("%w: have %d want %d", ErrBadHeight, h.Height, parent.Height+1)
	}
	if h.PreviousHash != parent.Hash() {
		return ErrBadParentHash
	}
	if got, want := h.TxRoot, DeriveTxRoot(b.Transactions); got != want {
		return fmt.Errorf("%w: have %s want %s", ErrBadTxRoot, got, want)
	}
	if len(b.Transactions) > maxTxs {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTxs, len(b.Transactions), maxTxs)
	}
	if b.Size() > maxBytes {
		return fmt.Errorf("%w: %d > %d", ErrBlockOversized, b.Size(), maxBytes)
	}
	return nil
}

// VerifyCommitSignature checks a single commit signature under pub.
func (b *Block) VerifyCommitSignature(cs CommitSignature, pub ed25519.PublicKey) bool {
	return ed25519.Verify(pub, b.Header.SigningMessage(), cs.Signature)
}
