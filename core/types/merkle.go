package types

import (
	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
)

// DeriveRoot computes the binary Merkle root over a sequence of leaf hashes.
// Odd nodes are promoted unchanged to the next level; an empty sequence
// yields the zero hash. Interior nodes hash under the merkle-node domain
// prefix so leaves can never be confused with interior nodes.
func DeriveRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := append([]common.Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, merkleParent(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

func merkleParent(left, right common.Hash) common.Hash {
	b := make([]byte, 0, 2*common.HashLength)
	b = append(b, left[:]...)
	b = append(b, right[:]...)
	return crypto.DomainHash(crypto.MerkleNodePrefix, b)
}

// DeriveTxRoot computes the transactions root of a block body.
func DeriveTxRoot(txs Transactions) common.Hash {
	leaves := make([]common.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.Hash()
	}
	return DeriveRoot(leaves)
}
