package validator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/zerodevapp/aa-sdk/signer"
)

// Kernel EIP-712 domain.
const (
	DomainName    = "Kernel"
	DomainVersion = "0.0.2"
)

// EnableTypedData returns the ValidatorApproved message an account's
// default validator signs to let v act for selector on account.
func EnableTypedData(ctx context.Context, v Validator, account common.Address, selector [4]byte) (apitypes.TypedData, error) {
	s := v.Settings()
	if s.ChainID == nil {
		return apitypes.TypedData{}, ErrValidatorUninitialized
	}
	if s.ValidUntil > MaxTimestamp || s.ValidAfter > MaxTimestamp {
		return apitypes.TypedData{}, ErrTimestampOverflow
	}
	enableData, err := v.EnableData(ctx)
	if err != nil {
		return apitypes.TypedData{}, err
	}
	// validatorData packs validUntil(6) validAfter(6) validator(20).
	packed := make([]byte, 0, 32)
	packed = append(packed, uint48(s.ValidUntil)...)
	packed = append(packed, uint48(s.ValidAfter)...)
	packed = append(packed, s.Address.Bytes()...)
	validatorData := new(big.Int).SetBytes(packed)

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"ValidatorApproved": {
				{Name: "sig", Type: "bytes4"},
				{Name: "validatorData", Type: "uint256"},
				{Name: "executor", Type: "address"},
				{Name: "enableData", Type: "bytes"},
			},
		},
		PrimaryType: "ValidatorApproved",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(s.ChainID)),
			VerifyingContract: account.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sig":           hexutil.Encode(selector[:]),
			"validatorData": validatorData.String(),
			"executor":      s.Executor.Hex(),
			"enableData":    hexutil.Encode(enableData),
		},
	}, nil
}

// EnableDigest returns the EIP-712 digest of the enable approval.
func EnableDigest(ctx context.Context, v Validator, account common.Address, selector [4]byte) (common.Hash, error) {
	td, err := EnableTypedData(ctx, v, account, selector)
	if err != nil {
		return common.Hash{}, err
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}

// ApproveExecutor has authority sign the enable approval for v and stores
// the result as v's enable signature.
func ApproveExecutor(ctx context.Context, authority signer.Authority, v Validator, account common.Address, selector [4]byte) ([]byte, error) {
	td, err := EnableTypedData(ctx, v, account, selector)
	if err != nil {
		return nil, err
	}
	sig, err := authority.SignTypedData(ctx, td)
	if err != nil {
		return nil, err
	}
	v.SetEnableSignature(sig)
	return sig, nil
}
