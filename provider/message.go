package provider

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// erc6492Magic suffixes signatures made by a not yet deployed account.
var erc6492Magic = bytes.Repeat([]byte{0x64, 0x92}, 16)

var erc6492Args = abi.Arguments{
	{Type: types.MustABIType("address")},
	{Type: types.MustABIType("bytes")},
	{Type: types.MustABIType("bytes")},
}

// SignMessage signs msg for address with the connected validator. Only
// the account itself may be named. Until the account is deployed the
// signature is wrapped per ERC-6492 so verifiers can counterfactually
// deploy it first.
func (p *Provider) SignMessage(ctx context.Context, address common.Address, msg []byte) ([]byte, error) {
	if p.account == nil {
		return nil, ErrAccountNotConnected
	}
	if p.validator == nil {
		return nil, ErrValidatorNotConnected
	}
	if address != p.account.Address() {
		return nil, ErrForeignAddress
	}
	sig, err := p.validator.SignMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	initCode, err := p.account.InitCode(ctx)
	if err != nil {
		return nil, err
	}
	if len(initCode) == 0 {
		return sig, nil
	}
	return WrapERC6492(initCode, sig)
}

// WrapERC6492 encodes abi.encode(factory, factoryCalldata, sig) followed
// by the 6492 magic suffix. initCode is factory(20) || factoryCalldata.
func WrapERC6492(initCode, sig []byte) ([]byte, error) {
	if len(initCode) < common.AddressLength {
		return nil, ErrInitCodeTooShort
	}
	factory := common.BytesToAddress(initCode[:common.AddressLength])
	enc, err := erc6492Args.Pack(factory, initCode[common.AddressLength:], sig)
	if err != nil {
		return nil, err
	}
	return append(enc, erc6492Magic...), nil
}

// UnwrapERC6492 splits a wrapped signature into its factory, factory
// calldata and inner signature. ok is false for unwrapped signatures.
func UnwrapERC6492(wrapped []byte) (factory common.Address, calldata, sig []byte, ok bool) {
	if !bytes.HasSuffix(wrapped, erc6492Magic) {
		return common.Address{}, nil, nil, false
	}
	vals, err := erc6492Args.Unpack(wrapped[:len(wrapped)-len(erc6492Magic)])
	if err != nil || len(vals) != 3 {
		return common.Address{}, nil, nil, false
	}
	return vals[0].(common.Address), vals[1].([]byte), vals[2].([]byte), true
}
