package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/log"
)

var ErrNoBundlers = errors.New("rpc: no bundlers configured")

// FallbackBundler tries its backends in order and returns the first
// success. When every backend fails, the errors of all of them are
// returned together, last one included.
type FallbackBundler struct {
	backends []Bundler
	log      *log.Logger
	// OnError, when set, observes each failed attempt.
	OnError func(method string, index int, err error)
}

var _ Bundler = (*FallbackBundler)(nil)

// NewFallbackBundler returns a failover bundler over backends.
func NewFallbackBundler(logger *log.Logger, backends ...Bundler) (*FallbackBundler, error) {
	if len(backends) == 0 {
		return nil, ErrNoBundlers
	}
	return &FallbackBundler{
		backends: backends,
		log:      log.OrDiscard(logger).Module("rpc/fallback"),
	}, nil
}

// Len returns the number of backends.
func (f *FallbackBundler) Len() int { return len(f.backends) }

func (f *FallbackBundler) SendUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (common.Hash, error) {
	return try(ctx, f, MethodSendUserOperation, func(b Bundler) (common.Hash, error) {
		return b.SendUserOperation(ctx, op, entryPoint)
	})
}

func (f *FallbackBundler) EstimateUserOperationGas(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	return try(ctx, f, MethodEstimateUserOperationGas, func(b Bundler) (*GasEstimate, error) {
		return b.EstimateUserOperationGas(ctx, op, entryPoint)
	})
}

func (f *FallbackBundler) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	return try(ctx, f, MethodSupportedEntryPoints, func(b Bundler) ([]common.Address, error) {
		return b.SupportedEntryPoints(ctx)
	})
}

func (f *FallbackBundler) ChainID(ctx context.Context) (*big.Int, error) {
	return try(ctx, f, MethodChainID, func(b Bundler) (*big.Int, error) {
		return b.ChainID(ctx)
	})
}

func try[T any](ctx context.Context, f *FallbackBundler, method string, call func(Bundler) (T, error)) (T, error) {
	var (
		zero T
		errs *multierror.Error
	)
	for i, b := range f.backends {
		v, err := call(b)
		if err == nil {
			return v, nil
		}
		errs = multierror.Append(errs, fmt.Errorf("bundler %d: %w", i, err))
		if f.OnError != nil {
			f.OnError(method, i, err)
		}
		if i < len(f.backends)-1 {
			f.log.Warn("bundler call failed, trying next", "method", method, "index", i, "err", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return zero, errs.ErrorOrNil()
}
