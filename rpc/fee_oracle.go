package rpc

import (
	"context"
	"errors"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

var ErrNoBaseFee = errors.New("rpc: latest header has no base fee")

// ChainReader is the node API the fee oracle reads. ethclient.Client
// satisfies it.
type ChainReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// FeeOracleConfig configures fee suggestions.
type FeeOracleConfig struct {
	// BaseFeeMultiplier scales the latest base fee to absorb increases
	// before inclusion.
	BaseFeeMultiplier int64
	// MaxPrice caps both suggested fee caps. Nil means no cap.
	MaxPrice *big.Int
}

// DefaultFeeOracleConfig returns the default configuration.
func DefaultFeeOracleConfig() FeeOracleConfig {
	return FeeOracleConfig{BaseFeeMultiplier: 2}
}

// FeeOracle suggests EIP-1559 fee caps for user operations as
// maxFee = multiplier*baseFee + tip.
type FeeOracle struct {
	config FeeOracleConfig
	chain  ChainReader
}

// NewFeeOracle creates a fee oracle over chain.
func NewFeeOracle(chain ChainReader, config FeeOracleConfig) *FeeOracle {
	if config.BaseFeeMultiplier <= 0 {
		config.BaseFeeMultiplier = 2
	}
	return &FeeOracle{config: config, chain: chain}
}

// SuggestFees returns the max fee and max priority fee per gas.
func (o *FeeOracle) SuggestFees(ctx context.Context) (maxFee, maxPriorityFee *big.Int, err error) {
	head, err := o.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	if head.BaseFee == nil {
		return nil, nil, ErrNoBaseFee
	}
	tip, err := o.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	maxFee = new(big.Int).Mul(head.BaseFee, big.NewInt(o.config.BaseFeeMultiplier))
	maxFee.Add(maxFee, tip)
	return o.cap(maxFee), o.cap(new(big.Int).Set(tip)), nil
}

func (o *FeeOracle) cap(val *big.Int) *big.Int {
	if o.config.MaxPrice != nil && val.Cmp(o.config.MaxPrice) > 0 {
		return new(big.Int).Set(o.config.MaxPrice)
	}
	return val
}
