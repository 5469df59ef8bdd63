package kernel

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// Backend is the subset of ethclient.Client the reader needs.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader performs read-only calls against Kernel accounts, their
// validators and the EntryPoint at the latest block.
type Reader struct {
	backend Backend
}

// NewReader returns a reader over backend.
func NewReader(backend Backend) *Reader {
	return &Reader{backend: backend}
}

// DefaultValidator returns the account's default (sudo) validator.
func (r *Reader) DefaultValidator(ctx context.Context, account common.Address) (common.Address, error) {
	out, err := r.call(ctx, AccountABI, account, "getDefaultValidator")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Execution returns the executor/validator pair registered for selector.
func (r *Reader) Execution(ctx context.Context, account common.Address, selector [4]byte) (types.Execution, error) {
	out, err := r.call(ctx, AccountABI, account, "getExecution", selector)
	if err != nil {
		return types.Execution{}, err
	}
	return *abi.ConvertType(out[0], new(types.Execution)).(*types.Execution), nil
}

// IsInitialized reports whether plugin holds state for account.
func (r *Reader) IsInitialized(ctx context.Context, plugin, account common.Address) (bool, error) {
	out, err := r.call(ctx, ValidatorABI, plugin, "isInitialized", account)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Nonce reads EntryPoint.getNonce(account, key).
func (r *Reader) Nonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error) {
	out, err := r.call(ctx, EntryPointABI, entryPoint, "getNonce", account, valueOrZero(key))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// IsDeployed reports whether account has code.
func (r *Reader) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := r.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("kernel: code at %s: %w", account, err)
	}
	return len(code) > 0, nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("kernel: pack %s: %w", method, err)
	}
	output, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("kernel: call %s on %s: %w", method, to, err)
	}
	out, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("kernel: unpack %s: %w", method, err)
	}
	return out, nil
}
