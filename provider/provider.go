// Package provider builds, signs and submits user operations for one
// smart account on one chain.
package provider

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/kernel"
	"github.com/zerodevapp/aa-sdk/log"
	"github.com/zerodevapp/aa-sdk/metrics"
	"github.com/zerodevapp/aa-sdk/rpc"
	"github.com/zerodevapp/aa-sdk/validator"
)

var (
	_ Account       = (*kernel.Account)(nil)
	_ FeeOracle     = (*rpc.FeeOracle)(nil)
	_ Sponsor       = (*rpc.PaymasterClient)(nil)
	_ PluginChecker = (*kernel.Reader)(nil)
)

// Account is the smart account operations are built for. *kernel.Account
// satisfies it.
type Account interface {
	Address() common.Address
	EntryPoint() common.Address
	EncodeCallData(action types.Action) ([]byte, error)
	InitCode(ctx context.Context) ([]byte, error)
	Nonce(ctx context.Context) (*big.Int, error)
}

// FeeOracle suggests fee caps. *rpc.FeeOracle satisfies it.
type FeeOracle interface {
	SuggestFees(ctx context.Context) (maxFee, maxPriorityFee *big.Int, err error)
}

// Sponsor returns paymaster data for an operation. *rpc.PaymasterClient
// satisfies it.
type Sponsor interface {
	SponsorUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*rpc.SponsorResult, error)
}

// PluginChecker reports whether a plugin holds state for an account.
// *kernel.Reader satisfies it.
type PluginChecker interface {
	IsInitialized(ctx context.Context, plugin, account common.Address) (bool, error)
}

// Config wires a Provider.
type Config struct {
	ChainID   *big.Int
	Account   Account
	Validator validator.Validator
	// RegularValidator is the secondary validator enabled through the
	// default one. Optional.
	RegularValidator validator.Validator
	Bundler          rpc.Bundler
	FeeOracle        FeeOracle
	Sponsor          Sponsor
	Plugins          PluginChecker
	// Middleware runs after the built-in stages.
	Middleware []Middleware

	MaxRetries    int
	RetryInterval time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Overrides pins fields of a new operation so the pipeline leaves them.
type Overrides struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	PaymasterAndData     []byte
}

// Result is an accepted operation.
type Result struct {
	Hash common.Hash
	// Request is the operation exactly as the bundler accepted it.
	Request *types.UserOperation
}

// Provider builds, signs and submits user operations.
type Provider struct {
	chainID    *big.Int
	entryPoint common.Address
	account    Account
	validator  validator.Validator
	regular    validator.Validator
	bundler    rpc.Bundler
	fees       FeeOracle
	sponsor    Sponsor
	plugins    PluginChecker
	custom     []Middleware

	maxRetries    int
	retryInterval time.Duration
	wait          func(ctx context.Context, d time.Duration) error

	log     *log.Logger
	metrics *metrics.Metrics
}

// New creates a provider from cfg.
func New(cfg Config) *Provider {
	p := &Provider{
		account:       cfg.Account,
		validator:     cfg.Validator,
		regular:       cfg.RegularValidator,
		bundler:       cfg.Bundler,
		fees:          cfg.FeeOracle,
		sponsor:       cfg.Sponsor,
		plugins:       cfg.Plugins,
		custom:        cfg.Middleware,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		wait:          sleep,
		log:           log.OrDiscard(cfg.Logger).Module("provider"),
		metrics:       cfg.Metrics,
	}
	if cfg.ChainID != nil {
		p.chainID = new(big.Int).Set(cfg.ChainID)
	}
	if cfg.Account != nil {
		p.entryPoint = cfg.Account.EntryPoint()
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	return p
}

// ChainID returns the chain the provider submits to.
func (p *Provider) ChainID() *big.Int {
	if p.chainID == nil {
		return nil
	}
	return new(big.Int).Set(p.chainID)
}

// Account returns the connected account, or nil.
func (p *Provider) Account() Account { return p.account }

// Validator returns the default validator operations are signed with.
func (p *Provider) Validator() validator.Validator { return p.validator }

// RegularValidator returns the secondary validator, or nil when none is
// configured.
func (p *Provider) RegularValidator() validator.Validator { return p.regular }

// EntryPoint returns the entry point operations are submitted to.
func (p *Provider) EntryPoint() common.Address { return p.entryPoint }

// BuildUserOperation creates the draft for action with the account's
// current nonce and init code. The action is validated before any
// network call.
func (p *Provider) BuildUserOperation(ctx context.Context, action types.Action) (*types.UserOperation, error) {
	if p.account == nil {
		return nil, ErrAccountNotConnected
	}
	callData, err := p.account.EncodeCallData(action)
	if err != nil {
		return nil, err
	}
	initCode, err := p.account.InitCode(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := p.account.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	return &types.UserOperation{
		Sender:   p.account.Address(),
		Nonce:    nonce,
		InitCode: initCode,
		CallData: callData,
	}, nil
}

// PrepareUserOperation runs the pipeline on a copy of op and checks that
// every field ended up set.
func (p *Provider) PrepareUserOperation(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error) {
	if p.validator == nil {
		return nil, ErrValidatorNotConnected
	}
	if op == nil {
		return nil, types.ErrNilUserOperation
	}
	stages := append([]Middleware{
		p.dummySignatureStage,
		p.feeStage,
		p.paymasterStage,
		p.gasStage,
	}, p.custom...)

	out, err := Pipe(stages...)(ctx, op.Copy())
	if err != nil {
		return nil, err
	}
	if missing := out.MissingFields(); len(missing) > 0 {
		return nil, newIncompleteOperationError(out, missing)
	}
	return out, nil
}

// UserOperationHash returns the hash op is signed over on this chain.
func (p *Provider) UserOperationHash(op *types.UserOperation) (common.Hash, error) {
	if p.chainID == nil {
		return common.Hash{}, validator.ErrValidatorUninitialized
	}
	return op.Hash(p.entryPoint, p.chainID)
}

// IsPluginInitialized reports whether the regular validator already acts
// for the account, either registered for execute or holding on-chain
// state. Account read failures are returned rather than falling back to
// the configured mode.
func (p *Provider) IsPluginInitialized(ctx context.Context) (bool, error) {
	if p.account == nil {
		return false, ErrAccountNotConnected
	}
	if p.regular == nil {
		return false, ErrNoRegularValidator
	}
	probe := &types.UserOperation{Sender: p.account.Address(), CallData: kernel.ExecuteSelector[:]}
	mode, err := p.regular.ReadMode(ctx, probe)
	if err != nil {
		return false, err
	}
	if mode != validator.ModeEnable {
		return true, nil
	}
	if p.plugins == nil {
		return false, nil
	}
	return p.plugins.IsInitialized(ctx, p.regular.Address(), p.account.Address())
}

// SendUserOperation builds, prepares, signs and submits action. Fee
// overrides are kept by the pipeline. A replacement-underpriced rejection
// is retried with both fee caps raised by 13% after the retry interval,
// re-signed under the same nonce.
func (p *Provider) SendUserOperation(ctx context.Context, action types.Action, overrides *Overrides) (*Result, error) {
	if p.account == nil {
		return nil, ErrAccountNotConnected
	}
	if p.validator == nil {
		return nil, ErrValidatorNotConnected
	}
	op, err := p.BuildUserOperation(ctx, action)
	if err != nil {
		return nil, err
	}
	overrides.Apply(op)

	op, err = p.PrepareUserOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	return p.submit(ctx, op)
}

// Apply copies the set overrides onto op.
func (o *Overrides) Apply(op *types.UserOperation) {
	if o == nil {
		return
	}
	set := func(dst **big.Int, v *big.Int) {
		if v != nil {
			*dst = new(big.Int).Set(v)
		}
	}
	set(&op.MaxFeePerGas, o.MaxFeePerGas)
	set(&op.MaxPriorityFeePerGas, o.MaxPriorityFeePerGas)
	set(&op.CallGasLimit, o.CallGasLimit)
	set(&op.VerificationGasLimit, o.VerificationGasLimit)
	set(&op.PreVerificationGas, o.PreVerificationGas)
	if o.PaymasterAndData != nil {
		op.PaymasterAndData = append([]byte{}, o.PaymasterAndData...)
	}
}
