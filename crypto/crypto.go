// Package crypto provides the domain-separated hashing used by every wire
// type in the protocol.
//
// Every message type is hashed and signed under its own domain prefix so that
// a valid signature for one message type can never be replayed as another:
//
//	Hash = SHA256(prefix || canonical-encoding)
package crypto

import (
	"crypto/sha256"

	"github.com/SELF-HQ/self-chain-core/common"
)

// Domain separation prefixes for the v1 wire format.
const (
	BlockHeaderPrefix = "self-chain-block-header-v1"
	TransactionPrefix = "self-chain-transaction-v1"
	RankedVotePrefix  = "self-chain-ranked-vote-v1"
	ProposalPrefix    = "self-chain-proposal-v1"
	MerkleNodePrefix  = "self-chain-merkle-node-v1"
	AccountPrefix     = "self-chain-account-v1"

	// Reserved for the two-step (prevote/precommit) voting mode.
	PrevotePrefix   = "self-chain-vote-prevote-v1"
	PrecommitPrefix = "self-chain-vote-precommit-v1"
)

// DomainHash returns SHA256(prefix || data).
func DomainHash(prefix string, data []byte) common.Hash {
	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write(data)
	return common.BytesToHash(h.Sum(nil))
}

// SigningMessage builds the byte string that is signed for a message with the
// given domain prefix: prefix || hash.
func SigningMessage(prefix string, hash common.Hash) []byte {
	msg := make([]byte, 0, len(prefix)+common.HashLength)
	msg = append(msg, prefix...)
	msg = append(msg, hash[:]...)
	return msg
}
