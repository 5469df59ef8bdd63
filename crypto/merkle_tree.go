// Merkle aggregation over 32-byte leaf digests.
//
// A MerkleTree commits to a multiset of leaves so that one signature over the
// root, plus a per-leaf inclusion proof, authorizes each leaf individually.
// Leaves are sorted before the tree is built and every pair of siblings is
// hashed as keccak256(min(a,b) || max(a,b)), so the root depends only on the
// multiset of leaves and never on the order they were supplied in. When a
// level has an odd number of nodes the last node is promoted unchanged.
//
// Proofs are compatible with OpenZeppelin's MerkleProof.verify, which is what
// the on-chain multi-chain validators check against.

package crypto

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrMerkleNoLeaves    = errors.New("merkle: no leaves")
	ErrMerkleLeafUnknown = errors.New("merkle: leaf not in tree")
)

// MerkleTree is an immutable sorted-pair Keccak Merkle tree.
type MerkleTree struct {
	// levels[0] holds the sorted leaves, levels[len-1] holds the root.
	levels [][]common.Hash
}

// NewMerkleTree builds a tree over the given leaves. The input slice is not
// modified.
func NewMerkleTree(leaves []common.Hash) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, ErrMerkleNoLeaves
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	sort.Slice(level, func(i, j int) bool {
		return bytes.Compare(level[i][:], level[j][:]) < 0
	})

	t := &MerkleTree{levels: [][]common.Hash{level}}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// HashPair hashes two sibling nodes in sorted order.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Keccak256Hash(a[:], b[:])
}

// Root returns the tree root.
func (t *MerkleTree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Leaves returns the leaves in tree (sorted) order.
func (t *MerkleTree) Leaves() []common.Hash {
	out := make([]common.Hash, len(t.levels[0]))
	copy(out, t.levels[0])
	return out
}

// Proof returns the ordered sibling digests from leaf to root. Levels where
// the node was promoted without a sibling contribute nothing.
func (t *MerkleTree) Proof(leaf common.Hash) ([]common.Hash, error) {
	idx := -1
	for i, l := range t.levels[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMerkleLeafUnknown
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sib := idx ^ 1
		if sib < len(level) {
			proof = append(proof, level[sib])
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyMerkleProof reports whether proof links leaf to root.
func VerifyMerkleProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	node := leaf
	for _, sib := range proof {
		node = HashPair(node, sib)
	}
	return node == root
}
