// Package signer defines the credential authority that produces ECDSA
// signatures for validators and for multi-chain Merkle roots.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var ErrNilKey = errors.New("signer: nil private key")

// Authority signs on behalf of one address.
type Authority interface {
	// Address returns the address recovered from the authority's signatures.
	Address() common.Address

	// SignMessage signs msg as an EIP-191 personal message.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)

	// SignTypedData signs the EIP-712 digest of data.
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// PrivateKey is an Authority backed by an in-memory secp256k1 key.
type PrivateKey struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewPrivateKey wraps key.
func NewPrivateKey(key *ecdsa.PrivateKey) (*PrivateKey, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	return &PrivateKey{key: key, addr: gethcrypto.PubkeyToAddress(key.PublicKey)}, nil
}

// HexToPrivateKey parses a hex encoded key, with or without 0x prefix.
func HexToPrivateKey(hexkey string) (*PrivateKey, error) {
	if len(hexkey) >= 2 && hexkey[0] == '0' && (hexkey[1] == 'x' || hexkey[1] == 'X') {
		hexkey = hexkey[2:]
	}
	key, err := gethcrypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, fmt.Errorf("signer: parse key: %w", err)
	}
	return NewPrivateKey(key)
}

// Address implements Authority.
func (p *PrivateKey) Address() common.Address { return p.addr }

// SignMessage implements Authority.
func (p *PrivateKey) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return p.SignHash(accounts.TextHash(msg))
}

// SignTypedData implements Authority.
func (p *PrivateKey) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("signer: typed data: %w", err)
	}
	return p.SignHash(digest)
}

// SignHash signs a 32-byte digest and returns [R || S || V] with V in {27, 28}.
func (p *PrivateKey) SignHash(digest []byte) ([]byte, error) {
	sig, err := gethcrypto.Sign(digest, p.key)
	if err != nil {
		return nil, err
	}
	sig[gethcrypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverMessageSigner returns the address that produced sig over the
// EIP-191 personal message msg.
func RecoverMessageSigner(msg, sig []byte) (common.Address, error) {
	return recoverDigest(accounts.TextHash(msg), sig)
}

// RecoverTypedDataSigner returns the address that produced sig over the
// EIP-712 digest of data.
func RecoverTypedDataSigner(data apitypes.TypedData, sig []byte) (common.Address, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, err
	}
	return recoverDigest(digest, sig)
}

func recoverDigest(digest, sig []byte) (common.Address, error) {
	if len(sig) != gethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signer: signature length %d", len(sig))
	}
	cpy := make([]byte, len(sig))
	copy(cpy, sig)
	if cpy[gethcrypto.RecoveryIDOffset] >= 27 {
		cpy[gethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := gethcrypto.SigToPub(digest, cpy)
	if err != nil {
		return common.Address{}, err
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}
