// Package validator implements the Kernel validator protocol: resolving
// the mode an account validates an operation in and producing the
// byte-exact signature for that mode.
package validator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/kernel"
)

var (
	ErrValidatorUninitialized = errors.New("validator: chain id not set")
	ErrMissingEnableSignature = errors.New("validator: enable mode requires an enable signature")
	ErrNoGuardians            = errors.New("validator: no guardians configured")
	ErrNoAccountReader        = errors.New("validator: no account reader")
)

// AccountReader reads the validator configuration of a Kernel account.
// kernel.Reader satisfies it.
type AccountReader interface {
	DefaultValidator(ctx context.Context, account common.Address) (common.Address, error)
	Execution(ctx context.Context, account common.Address, selector [4]byte) (types.Execution, error)
}

// Settings is the chain context and enable parameters of a validator.
type Settings struct {
	// Address is the validator contract.
	Address    common.Address
	EntryPoint common.Address
	ChainID    *big.Int
	// Mode is used when the account state cannot be read.
	Mode       Mode
	Executor   common.Address
	ValidUntil uint64
	ValidAfter uint64
}

// Validator is the capability set shared by every credential kind.
type Validator interface {
	Address() common.Address
	Settings() Settings
	// ReadMode reads the account state to pick the signature mode and
	// fails when the account cannot be read.
	ReadMode(ctx context.Context, op *types.UserOperation) (Mode, error)
	// ResolveMode is ReadMode with the configured mode as fallback.
	ResolveMode(ctx context.Context, op *types.UserOperation) (Mode, error)
	// SignUserOperation signs the operation hash with the credential.
	SignUserOperation(ctx context.Context, op *types.UserOperation) ([]byte, error)
	// SignMessage signs msg as an EIP-191 personal message with the
	// credential.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	EnableData(ctx context.Context) ([]byte, error)
	// Signature returns the mode-framed signature to submit.
	Signature(ctx context.Context, op *types.UserOperation) ([]byte, error)
	// DummySignature returns a framed placeholder sized for estimation.
	DummySignature(ctx context.Context, op *types.UserOperation) ([]byte, error)
	StubSignature() []byte
	SetEnableSignature(sig []byte)
	EnableSignature() []byte
	EncodeEnable(ctx context.Context) ([]byte, error)
	EncodeDisable(disableData []byte) ([]byte, error)
}

// credential is what each validator kind contributes to base.
type credential interface {
	signHash(ctx context.Context, hash common.Hash) ([]byte, error)
	signMessage(ctx context.Context, msg []byte) ([]byte, error)
	enableData(ctx context.Context) ([]byte, error)
	stub() []byte
}

// base implements the mode protocol on top of a credential.
type base struct {
	settings Settings
	reader   AccountReader
	cred     credential

	mu        sync.RWMutex
	enableSig []byte
}

func newBase(settings Settings, reader AccountReader, cred credential) *base {
	if settings.ChainID != nil {
		settings.ChainID = new(big.Int).Set(settings.ChainID)
	}
	return &base{settings: settings, reader: reader, cred: cred}
}

func (b *base) Address() common.Address { return b.settings.Address }

func (b *base) Settings() Settings {
	s := b.settings
	if s.ChainID != nil {
		s.ChainID = new(big.Int).Set(s.ChainID)
	}
	return s
}

// ResolveMode is ReadMode with a fallback: if the account cannot be
// read, a configured Plugin mode becomes Enable and any other configured
// mode is used as is.
func (b *base) ResolveMode(ctx context.Context, op *types.UserOperation) (Mode, error) {
	mode, err := b.ReadMode(ctx, op)
	switch {
	case err == nil:
		return mode, nil
	case errors.Is(err, ErrValidatorUninitialized), errors.Is(err, types.ErrNilUserOperation):
		return 0, err
	case b.settings.Mode == ModePlugin:
		return ModeEnable, nil
	default:
		return b.settings.Mode, nil
	}
}

// ReadMode returns Sudo when this validator is the account's default,
// Plugin when it is registered for the call's selector, and Enable
// otherwise. Read failures are returned as is.
func (b *base) ReadMode(ctx context.Context, op *types.UserOperation) (Mode, error) {
	if b.settings.ChainID == nil {
		return 0, ErrValidatorUninitialized
	}
	if op == nil {
		return 0, types.ErrNilUserOperation
	}
	if b.reader == nil {
		return 0, ErrNoAccountReader
	}
	def, err := b.reader.DefaultValidator(ctx, op.Sender)
	if err != nil {
		return 0, err
	}
	if def == b.settings.Address {
		return ModeSudo, nil
	}
	exec, err := b.reader.Execution(ctx, op.Sender, op.Selector())
	if err != nil {
		return 0, err
	}
	if exec.Validator == b.settings.Address {
		return ModePlugin, nil
	}
	return ModeEnable, nil
}

func (b *base) SignUserOperation(ctx context.Context, op *types.UserOperation) ([]byte, error) {
	if b.settings.ChainID == nil {
		return nil, ErrValidatorUninitialized
	}
	hash, err := op.Hash(b.settings.EntryPoint, b.settings.ChainID)
	if err != nil {
		return nil, err
	}
	return b.cred.signHash(ctx, hash)
}

func (b *base) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return b.cred.signMessage(ctx, msg)
}

func (b *base) EnableData(ctx context.Context) ([]byte, error) {
	return b.cred.enableData(ctx)
}

func (b *base) Signature(ctx context.Context, op *types.UserOperation) ([]byte, error) {
	mode, err := b.ResolveMode(ctx, op)
	if err != nil {
		return nil, err
	}
	var enableSig []byte
	if mode == ModeEnable {
		if enableSig = b.EnableSignature(); len(enableSig) == 0 {
			return nil, ErrMissingEnableSignature
		}
	}
	sig, err := b.SignUserOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	return b.frame(ctx, mode, enableSig, sig)
}

func (b *base) DummySignature(ctx context.Context, op *types.UserOperation) ([]byte, error) {
	mode, err := b.ResolveMode(ctx, op)
	if err != nil {
		return nil, err
	}
	enableSig := b.EnableSignature()
	if mode == ModeEnable && len(enableSig) == 0 {
		enableSig = ecdsaStub
	}
	return b.frame(ctx, mode, enableSig, b.cred.stub())
}

func (b *base) StubSignature() []byte {
	return append([]byte{}, b.cred.stub()...)
}

func (b *base) frame(ctx context.Context, mode Mode, enableSig, sig []byte) ([]byte, error) {
	switch mode {
	case ModeSudo, ModePlugin:
		return append(mode.Tag(), sig...), nil
	case ModeEnable:
		enableData, err := b.cred.enableData(ctx)
		if err != nil {
			return nil, err
		}
		return EncodeEnableFrame(&EnableFrame{
			ValidUntil:      b.settings.ValidUntil,
			ValidAfter:      b.settings.ValidAfter,
			Validator:       b.settings.Address,
			Executor:        b.settings.Executor,
			EnableData:      enableData,
			EnableSignature: enableSig,
			Signature:       sig,
		})
	default:
		return nil, fmt.Errorf("validator: unsupported %s", mode)
	}
}

// SetEnableSignature stores the approval used when framing Enable mode.
func (b *base) SetEnableSignature(sig []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enableSig = append([]byte{}, sig...)
}

func (b *base) EnableSignature() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.enableSig == nil {
		return nil
	}
	return append([]byte{}, b.enableSig...)
}

func (b *base) EncodeEnable(ctx context.Context) ([]byte, error) {
	data, err := b.cred.enableData(ctx)
	if err != nil {
		return nil, err
	}
	return kernel.EncodeEnable(data)
}

func (b *base) EncodeDisable(disableData []byte) ([]byte, error) {
	return kernel.EncodeDisable(disableData)
}

// ecdsaStub is a 65-byte signature with non-zero r and s so estimation
// pays for a full ecrecover.
var ecdsaStub = func() []byte {
	sig := make([]byte, 65)
	for i := 0; i < 15; i++ {
		sig[i] = 0xff
	}
	sig[15] = 0xf0
	sig[31] = 0x07
	for i := 32; i < 64; i++ {
		sig[i] = 0xaa
	}
	sig[64] = 0x1c
	return sig
}()
