// Package rpc provides JSON-RPC clients for ERC-4337 bundlers and
// paymasters, an ordered failover bundler and a fee oracle.
package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// Bundler method names.
const (
	MethodSendUserOperation        = "eth_sendUserOperation"
	MethodEstimateUserOperationGas = "eth_estimateUserOperationGas"
	MethodSupportedEntryPoints     = "eth_supportedEntryPoints"
	MethodChainID                  = "eth_chainId"
	MethodSponsorUserOperation     = "pm_sponsorUserOperation"
)

// Bundler is the bundler API used to estimate and submit operations.
type Bundler interface {
	SendUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (common.Hash, error)
	EstimateUserOperationGas(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*GasEstimate, error)
	SupportedEntryPoints(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// GasEstimate is the result of eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

// BundlerClient talks to one bundler endpoint.
type BundlerClient struct {
	c *gethrpc.Client
}

var _ Bundler = (*BundlerClient)(nil)

// DialBundler connects to the bundler at url.
func DialBundler(ctx context.Context, url string) (*BundlerClient, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewBundlerClient(c), nil
}

// NewBundlerClient wraps an existing RPC client.
func NewBundlerClient(c *gethrpc.Client) *BundlerClient {
	return &BundlerClient{c: c}
}

// Close closes the underlying connection.
func (b *BundlerClient) Close() { b.c.Close() }

// SendUserOperation submits op and returns its operation hash.
func (b *BundlerClient) SendUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (common.Hash, error) {
	var hash common.Hash
	err := b.c.CallContext(ctx, &hash, MethodSendUserOperation, op, entryPoint)
	return hash, err
}

func (b *BundlerClient) EstimateUserOperationGas(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	var est GasEstimate
	if err := b.c.CallContext(ctx, &est, MethodEstimateUserOperationGas, op, entryPoint); err != nil {
		return nil, err
	}
	return &est, nil
}

func (b *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var eps []common.Address
	err := b.c.CallContext(ctx, &eps, MethodSupportedEntryPoints)
	return eps, err
}

func (b *BundlerClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := b.c.CallContext(ctx, &id, MethodChainID); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}
