// Package kernel encodes calls for Kernel smart accounts and reads the
// account state validators depend on.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
)

// Kernel account errors.
var (
	ErrInvalidOperationKind = errors.New("kernel: delegate call cannot be batched")
	ErrNoCalls              = errors.New("kernel: action has no calls")
	ErrAccountNotDeployed   = errors.New("kernel: account not deployed and no factory configured")
)

// Kernel Operation enum values.
const (
	opCall         uint8 = 0
	opDelegateCall uint8 = 1
)

// AccountConfig describes a Kernel account.
type AccountConfig struct {
	Address    common.Address
	EntryPoint common.Address
	// Factory and FactoryData build the init code used while the account
	// is not yet deployed.
	Factory     common.Address
	FactoryData []byte
	// NonceKey selects the EntryPoint nonce sequence. Nil means key 0.
	NonceKey *big.Int
}

// Account encodes call data for one Kernel account and reads its nonce and
// deployment state.
type Account struct {
	cfg    AccountConfig
	reader *Reader
}

// NewAccount returns an account bound to reader.
func NewAccount(cfg AccountConfig, reader *Reader) *Account {
	return &Account{cfg: cfg, reader: reader}
}

// Address returns the account address.
func (a *Account) Address() common.Address { return a.cfg.Address }

// EntryPoint returns the entry point the account is validated by.
func (a *Account) EntryPoint() common.Address { return a.cfg.EntryPoint }

// EncodeCallData encodes action as execute or executeBatch call data.
func (a *Account) EncodeCallData(action types.Action) ([]byte, error) {
	return EncodeCallData(action)
}

// EncodeCallData encodes action for a Kernel account. A delegate call
// cannot be combined with a batch.
func EncodeCallData(action types.Action) ([]byte, error) {
	if len(action.Calls) == 0 {
		return nil, ErrNoCalls
	}
	if action.IsBatch() {
		if action.Kind != types.KindCall {
			return nil, ErrInvalidOperationKind
		}
		type batchCall struct {
			To    common.Address
			Value *big.Int
			Data  []byte
		}
		calls := make([]batchCall, len(action.Calls))
		for i, c := range action.Calls {
			calls[i] = batchCall{To: c.To, Value: valueOrZero(c.Value), Data: dataOrEmpty(c.Data)}
		}
		return AccountABI.Pack("executeBatch", calls)
	}
	c := action.Calls[0]
	switch action.Kind {
	case types.KindCall:
		return AccountABI.Pack("execute", c.To, valueOrZero(c.Value), dataOrEmpty(c.Data), opCall)
	case types.KindDelegateCall:
		return AccountABI.Pack("execute", c.To, valueOrZero(c.Value), dataOrEmpty(c.Data), opDelegateCall)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperationKind, action.Kind)
	}
}

// InitCode returns factory || factoryData while the account has no code,
// and empty init code once it is deployed.
func (a *Account) InitCode(ctx context.Context) ([]byte, error) {
	deployed, err := a.reader.IsDeployed(ctx, a.cfg.Address)
	if err != nil {
		return nil, err
	}
	if deployed {
		return []byte{}, nil
	}
	if a.cfg.Factory == (common.Address{}) {
		return nil, ErrAccountNotDeployed
	}
	initCode := make([]byte, 0, common.AddressLength+len(a.cfg.FactoryData))
	initCode = append(initCode, a.cfg.Factory.Bytes()...)
	return append(initCode, a.cfg.FactoryData...), nil
}

// Nonce reads the account's next EntryPoint nonce.
func (a *Account) Nonce(ctx context.Context) (*big.Int, error) {
	return a.reader.Nonce(ctx, a.cfg.EntryPoint, a.cfg.Address, a.cfg.NonceKey)
}

// EncodeCreateAccount encodes the factory call deploying a Kernel account
// whose default validator is enabled with enableData.
func EncodeCreateAccount(validator common.Address, enableData []byte, index *big.Int) ([]byte, error) {
	return FactoryABI.Pack("createAccount", validator, dataOrEmpty(enableData), valueOrZero(index))
}

// EncodeEnable encodes the validator call installing enableData.
func EncodeEnable(enableData []byte) ([]byte, error) {
	return ValidatorABI.Pack("enable", dataOrEmpty(enableData))
}

// EncodeDisable encodes the validator call removing disableData.
func EncodeDisable(disableData []byte) ([]byte, error) {
	return ValidatorABI.Pack("disable", dataOrEmpty(disableData))
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func dataOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
