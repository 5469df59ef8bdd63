package crypto

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = Keccak256Hash([]byte{byte(i), byte(i >> 8), 0xaa})
	}
	return leaves
}

func TestMerkleTreeEmpty(t *testing.T) {
	_, err := NewMerkleTree(nil)
	require.ErrorIs(t, err, ErrMerkleNoLeaves)
}

func TestMerkleTreeSingleLeaf(t *testing.T) {
	leaf := testLeaves(1)[0]
	tree, err := NewMerkleTree([]common.Hash{leaf})
	require.NoError(t, err)
	require.Equal(t, leaf, tree.Root())

	proof, err := tree.Proof(leaf)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.True(t, VerifyMerkleProof(leaf, proof, tree.Root()))
}

func TestMerkleTreeTwoLeaves(t *testing.T) {
	leaves := testLeaves(2)
	tree, err := NewMerkleTree(leaves)
	require.NoError(t, err)
	require.Equal(t, HashPair(leaves[0], leaves[1]), tree.Root())
	require.Equal(t, HashPair(leaves[1], leaves[0]), tree.Root())

	proof, err := tree.Proof(leaves[0])
	require.NoError(t, err)
	require.Equal(t, []common.Hash{leaves[1]}, proof)
}

func TestMerkleRootOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{2, 3, 4, 5, 7, 8, 13} {
		leaves := testLeaves(n)
		tree, err := NewMerkleTree(leaves)
		require.NoError(t, err)
		root := tree.Root()

		for round := 0; round < 5; round++ {
			shuffled := make([]common.Hash, n)
			copy(shuffled, leaves)
			rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			other, err := NewMerkleTree(shuffled)
			require.NoError(t, err)
			require.Equal(t, root, other.Root(), "n=%d round=%d", n, round)
		}
	}
}

func TestMerkleProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 6, 9, 16, 17} {
		leaves := testLeaves(n)
		tree, err := NewMerkleTree(leaves)
		require.NoError(t, err)
		for i, leaf := range leaves {
			proof, err := tree.Proof(leaf)
			require.NoError(t, err)
			require.True(t, VerifyMerkleProof(leaf, proof, tree.Root()), "n=%d leaf=%d", n, i)
			require.False(t, VerifyMerkleProof(Keccak256Hash([]byte("forged")), proof, tree.Root()))
		}
	}
}

func TestMerkleMutatedLeafChangesRoot(t *testing.T) {
	leaves := testLeaves(6)
	tree, err := NewMerkleTree(leaves)
	require.NoError(t, err)

	for i := range leaves {
		mutated := make([]common.Hash, len(leaves))
		copy(mutated, leaves)
		mutated[i][31] ^= 0x01
		other, err := NewMerkleTree(mutated)
		require.NoError(t, err)
		require.NotEqual(t, tree.Root(), other.Root(), "leaf %d", i)
	}
}

func TestMerkleDuplicateLeaves(t *testing.T) {
	leaf := testLeaves(1)[0]
	tree, err := NewMerkleTree([]common.Hash{leaf, leaf})
	require.NoError(t, err)
	proof, err := tree.Proof(leaf)
	require.NoError(t, err)
	require.True(t, VerifyMerkleProof(leaf, proof, tree.Root()))
}

func TestMerkleUnknownLeaf(t *testing.T) {
	tree, err := NewMerkleTree(testLeaves(3))
	require.NoError(t, err)
	_, err = tree.Proof(common.HexToHash("0x01"))
	require.ErrorIs(t, err, ErrMerkleLeafUnknown)
}

func TestMerkleInputNotMutated(t *testing.T) {
	leaves := testLeaves(5)
	orig := make([]common.Hash, len(leaves))
	copy(orig, leaves)
	_, err := NewMerkleTree(leaves)
	require.NoError(t, err)
	require.Equal(t, orig, leaves)
}
