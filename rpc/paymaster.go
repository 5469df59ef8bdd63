package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// SponsorResult is a paymaster's answer to a sponsorship request. Gas
// fields are set when the paymaster re-estimated the operation.
type SponsorResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas,omitempty"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit,omitempty"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit,omitempty"`
}

// PaymasterClient requests gas sponsorship from a paymaster service.
type PaymasterClient struct {
	c *gethrpc.Client
}

// DialPaymaster connects to the paymaster at url.
func DialPaymaster(ctx context.Context, url string) (*PaymasterClient, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewPaymasterClient(c), nil
}

// NewPaymasterClient wraps an existing RPC client.
func NewPaymasterClient(c *gethrpc.Client) *PaymasterClient {
	return &PaymasterClient{c: c}
}

func (p *PaymasterClient) Close() { p.c.Close() }

// SponsorUserOperation asks the paymaster to sponsor op.
func (p *PaymasterClient) SponsorUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*SponsorResult, error) {
	var res SponsorResult
	if err := p.c.CallContext(ctx, &res, MethodSponsorUserOperation, op, entryPoint); err != nil {
		return nil, err
	}
	return &res, nil
}
