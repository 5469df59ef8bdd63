package multichain

import (
	"context"
	"math/bits"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/crypto"
	"github.com/zerodevapp/aa-sdk/signer"
)

var (
	proofArgs    = abi.Arguments{{Type: types.MustABIType("bytes32[]")}}
	approvalArgs = abi.Arguments{{Type: types.MustABIType("bytes")}, {Type: types.MustABIType("bytes")}}
)

// EncodeMerkleApproval encodes abi.encode(bytes merkleData, bytes rootSig)
// with merkleData = root || abi.encode(bytes32[] proof).
func EncodeMerkleApproval(root common.Hash, proof []common.Hash, rootSig []byte) ([]byte, error) {
	words := make([][32]byte, len(proof))
	for i, p := range proof {
		words[i] = p
	}
	encProof, err := proofArgs.Pack(words)
	if err != nil {
		return nil, err
	}
	merkleData := append(root.Bytes(), encProof...)
	return approvalArgs.Pack(merkleData, rootSig)
}

// DecodeMerkleApproval splits an approval into root, proof and signature.
func DecodeMerkleApproval(b []byte) (root common.Hash, proof []common.Hash, rootSig []byte, err error) {
	out, err := approvalArgs.Unpack(b)
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	merkleData := out[0].([]byte)
	if len(merkleData) < common.HashLength {
		return common.Hash{}, nil, nil, ErrMalformedApproval
	}
	root = common.BytesToHash(merkleData[:common.HashLength])
	enc, err := proofArgs.Unpack(merkleData[common.HashLength:])
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	for _, w := range enc[0].([][32]byte) {
		proof = append(proof, common.Hash(w))
	}
	return root, proof, out[1].([]byte), nil
}

// signRoot has authority sign the EIP-191 hash of root as a message.
func signRoot(ctx context.Context, authority signer.Authority, root common.Hash) ([]byte, error) {
	if authority == nil {
		return nil, ErrMissingAuthoritySignature
	}
	sig, err := authority.SignMessage(ctx, accounts.TextHash(root.Bytes()))
	if err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, ErrMissingAuthoritySignature
	}
	return sig, nil
}

// buildTree commits to leaves and returns each leaf's proof in order.
func buildTree(leaves []common.Hash) (common.Hash, [][]common.Hash, error) {
	tree, err := crypto.NewMerkleTree(leaves)
	if err != nil {
		return common.Hash{}, nil, err
	}
	proofs := make([][]common.Hash, len(leaves))
	for i, leaf := range leaves {
		if proofs[i], err = tree.Proof(leaf); err != nil {
			return common.Hash{}, nil, err
		}
	}
	return tree.Root(), proofs, nil
}

// proofDepth is the longest proof a tree over n leaves can have.
func proofDepth(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
