package provider

import (
	"context"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/metrics"
)

var (
	bumpNumerator   = uint256.NewInt(113)
	bumpDenominator = uint256.NewInt(100)
)

// BumpFee returns floor(fee * 113 / 100).
func BumpFee(fee *big.Int) (*big.Int, error) {
	if fee == nil || fee.Sign() < 0 {
		return nil, ErrFeeOverflow
	}
	v, overflow := uint256.FromBig(fee)
	if overflow {
		return nil, ErrFeeOverflow
	}
	if _, overflow = v.MulDivOverflow(v, bumpNumerator, bumpDenominator); overflow {
		return nil, ErrFeeOverflow
	}
	return v.ToBig(), nil
}

// submit signs and sends op until the bundler accepts it, a rejection is
// not retryable, or the retries are used up.
func (p *Provider) submit(ctx context.Context, op *types.UserOperation) (*Result, error) {
	log := p.log.With("sender", op.Sender, "nonce", op.Nonce)
	for attempt := 0; ; attempt++ {
		sig, err := p.validator.Signature(ctx, op)
		if err != nil {
			return nil, err
		}
		op.Signature = sig

		p.metrics.ObserveSubmit()
		hash, err := p.bundler.SendUserOperation(ctx, op, p.entryPoint)
		if err == nil {
			p.metrics.ObserveAccepted(attempt + 1)
			log.Debug("Operation accepted", "hash", hash, "attempts", attempt+1)
			return &Result{Hash: hash, Request: op.Copy()}, nil
		}
		if !IsReplacementUnderpriced(err) {
			p.metrics.ObserveRejection(metrics.ClassFatal)
			return nil, UnwrapError(err)
		}
		p.metrics.ObserveRejection(metrics.ClassRetryable)
		if attempt >= p.maxRetries {
			p.metrics.ObserveRetriesExhausted()
			log.Warn("Retries exhausted", "attempts", attempt+1, "err", err)
			return nil, UnwrapError(err)
		}

		if op.MaxFeePerGas, err = BumpFee(op.MaxFeePerGas); err != nil {
			return nil, err
		}
		if op.MaxPriorityFeePerGas, err = BumpFee(op.MaxPriorityFeePerGas); err != nil {
			return nil, err
		}
		p.metrics.ObserveFeeBump()
		log.Info("Resending operation with increased fees", "attempt", attempt+1, "wait", p.retryInterval,
			"maxFeePerGas", op.MaxFeePerGas, "maxPriorityFeePerGas", op.MaxPriorityFeePerGas)
		if err := p.wait(ctx, p.retryInterval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
