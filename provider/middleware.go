package provider

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// Middleware enriches an operation draft. It may modify any field and
// returns the draft the next stage receives.
type Middleware func(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error)

// Pipe chains stages so each one runs after the previous has returned.
func Pipe(stages ...Middleware) Middleware {
	return func(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
		var err error
		for _, stage := range stages {
			if stage == nil {
				continue
			}
			if op, err = stage(ctx, op); err != nil {
				return nil, err
			}
		}
		return op, nil
	}
}

// dummyPaymasterAndData is a verifying-paymaster blob used while
// estimating a sponsored operation.
var dummyPaymasterAndData = common.FromHex("0xfe7dbcab8aaee4eb67943c1e6be95b1d065985c6000000000000000000000000000000000000000000000000000001869aa31cf400000000000000000000000000000000000000000000000000000000000000007dfe2190f34af27b265bae608717cdc9368b471fc0c097ab7b4088f255b4961e57b039e7e571b15221081c5dce7bcb93459b27a3ab65d2f8a889f4a40b4022801b")

// dummySignatureStage attaches a placeholder signature, and a placeholder
// paymaster blob when a sponsor will fill it in.
func (p *Provider) dummySignatureStage(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
	if op.Signature == nil {
		sig, err := p.validator.DummySignature(ctx, op)
		if err != nil {
			return nil, err
		}
		op.Signature = sig
	}
	if p.sponsor != nil && op.PaymasterAndData == nil {
		op.PaymasterAndData = append([]byte{}, dummyPaymasterAndData...)
	}
	return op, nil
}

// feeStage fills unset fee caps from the fee oracle.
func (p *Provider) feeStage(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
	if op.MaxFeePerGas != nil && op.MaxPriorityFeePerGas != nil || p.fees == nil {
		return op, nil
	}
	maxFee, tip, err := p.fees.SuggestFees(ctx)
	if err != nil {
		return nil, err
	}
	if op.MaxFeePerGas == nil {
		op.MaxFeePerGas = maxFee
	}
	if op.MaxPriorityFeePerGas == nil {
		op.MaxPriorityFeePerGas = tip
	}
	return op, nil
}

// paymasterStage replaces the placeholder paymaster blob with sponsor
// data, or sets empty paymaster data when nobody sponsors.
func (p *Provider) paymasterStage(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
	if p.sponsor == nil || !bytes.Equal(op.PaymasterAndData, dummyPaymasterAndData) {
		if op.PaymasterAndData == nil {
			op.PaymasterAndData = []byte{}
		}
		return op, nil
	}
	res, err := p.sponsor.SponsorUserOperation(ctx, op, p.entryPoint)
	if err != nil {
		return nil, err
	}
	op.PaymasterAndData = append([]byte{}, res.PaymasterAndData...)
	if res.PreVerificationGas != nil {
		op.PreVerificationGas = new(big.Int).Set(res.PreVerificationGas.ToInt())
	}
	if res.VerificationGasLimit != nil {
		op.VerificationGasLimit = new(big.Int).Set(res.VerificationGasLimit.ToInt())
	}
	if res.CallGasLimit != nil {
		op.CallGasLimit = new(big.Int).Set(res.CallGasLimit.ToInt())
	}
	return op, nil
}

// gasStage estimates unset gas limits with the bundler.
func (p *Provider) gasStage(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
	if op.CallGasLimit != nil && op.VerificationGasLimit != nil && op.PreVerificationGas != nil {
		return op, nil
	}
	est, err := p.bundler.EstimateUserOperationGas(ctx, op, p.entryPoint)
	if err != nil {
		return nil, err
	}
	if op.CallGasLimit == nil && est.CallGasLimit != nil {
		op.CallGasLimit = new(big.Int).Set(est.CallGasLimit.ToInt())
	}
	if op.VerificationGasLimit == nil && est.VerificationGasLimit != nil {
		op.VerificationGasLimit = new(big.Int).Set(est.VerificationGasLimit.ToInt())
	}
	if op.PreVerificationGas == nil && est.PreVerificationGas != nil {
		op.PreVerificationGas = new(big.Int).Set(est.PreVerificationGas.ToInt())
	}
	return op, nil
}
