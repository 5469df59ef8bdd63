// Package multichain signs operations for several chains with a single
// authority signature over a Merkle root of per-chain commitments.
package multichain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/kernel"
	"github.com/zerodevapp/aa-sdk/log"
	"github.com/zerodevapp/aa-sdk/metrics"
	"github.com/zerodevapp/aa-sdk/provider"
	"github.com/zerodevapp/aa-sdk/signer"
	"github.com/zerodevapp/aa-sdk/validator"
)

// Client prepares operations on one chain. *provider.Provider satisfies it.
type Client interface {
	ChainID() *big.Int
	Account() provider.Account
	BuildUserOperation(ctx context.Context, action types.Action) (*types.UserOperation, error)
	PrepareUserOperation(ctx context.Context, op *types.UserOperation) (*types.UserOperation, error)
	UserOperationHash(op *types.UserOperation) (common.Hash, error)
	RegularValidator() validator.Validator
	IsPluginInitialized(ctx context.Context) (bool, error)
}

var _ Client = (*provider.Provider)(nil)

// Intent is the operation requested on one chain.
type Intent struct {
	ChainID   *big.Int
	Action    types.Action
	Overrides *provider.Overrides
}

// Aggregator signs a batch of per-chain operations with one authority
// signature.
type Aggregator struct {
	// Authority is the credential of the accounts' default validator.
	Authority signer.Authority
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// chain is the per-chain state of one batch.
type chain struct {
	index   int
	client  Client
	intent  Intent
	account common.Address
	op      *types.UserOperation
}

func (c *chain) wrap(err error) error {
	return fmt.Errorf("chain %v: %w", c.intent.ChainID, err)
}

// PrepareAndSign returns one signed operation per intent, in order. The
// batch fails as a whole: any error on any chain aborts it before a
// partial result is produced.
func (a *Aggregator) PrepareAndSign(ctx context.Context, clients []Client, intents []Intent) ([]*types.UserOperation, error) {
	chains, err := validateBatch(clients, intents)
	if err != nil {
		return nil, err
	}
	logger := log.OrDiscard(a.Logger).Module("multichain").With("chains", len(chains))

	if clients[0].RegularValidator() == nil {
		ops, err := a.signMerkle(ctx, chains)
		if err == nil {
			a.Metrics.ObserveBatch(metrics.BranchMerkle)
			logger.Debug("Signed batch over operation hashes")
		}
		return ops, err
	}

	enabled, err := pluginStates(ctx, chains)
	if err != nil {
		return nil, err
	}
	allEnabled, noneEnabled := true, true
	for _, e := range enabled {
		allEnabled = allEnabled && e
		noneEnabled = noneEnabled && !e
	}
	switch {
	case allEnabled:
		ops, err := a.signDirect(ctx, chains)
		if err == nil {
			a.Metrics.ObserveBatch(metrics.BranchDirect)
			logger.Debug("Signed batch with active validators")
		}
		return ops, err
	case noneEnabled:
		ops, err := a.signEnable(ctx, chains)
		if err == nil {
			a.Metrics.ObserveBatch(metrics.BranchEnable)
			logger.Debug("Signed batch enabling validators")
		}
		return ops, err
	default:
		logger.Warn("Plugin state differs across chains", "enabled", enabled)
		return nil, ErrPluginStateInconsistent
	}
}

func validateBatch(clients []Client, intents []Intent) ([]*chain, error) {
	if len(clients) < 2 && len(intents) < 2 {
		return nil, ErrTooFewOperations
	}
	if len(clients) != len(intents) {
		return nil, ErrClientCountMismatch
	}
	chains := make([]*chain, len(clients))
	for i, c := range clients {
		id := c.ChainID()
		if id == nil || intents[i].ChainID == nil || id.Cmp(intents[i].ChainID) != 0 {
			return nil, &ChainMismatchError{Index: i, Client: id, Intent: intents[i].ChainID}
		}
	}
	for i, c := range clients {
		acct := c.Account()
		if acct == nil {
			return nil, &AccountNotFoundError{Index: i}
		}
		chains[i] = &chain{index: i, client: c, intent: intents[i], account: acct.Address()}
	}
	return chains, nil
}

// forEach runs fn for every chain concurrently and returns the first error.
func forEach(ctx context.Context, chains []*chain, fn func(ctx context.Context, c *chain) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range chains {
		g.Go(func() error {
			if err := fn(ctx, c); err != nil {
				return c.wrap(err)
			}
			return nil
		})
	}
	return g.Wait()
}

func pluginStates(ctx context.Context, chains []*chain) ([]bool, error) {
	enabled := make([]bool, len(chains))
	err := forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		ok, err := c.client.IsPluginInitialized(ctx)
		enabled[c.index] = ok
		return err
	})
	return enabled, err
}

// buildDrafts creates each chain's draft with the intent's overrides.
func buildDrafts(ctx context.Context, chains []*chain) error {
	return forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		op, err := c.client.BuildUserOperation(ctx, c.intent.Action)
		if err != nil {
			return err
		}
		c.intent.Overrides.Apply(op)
		c.op = op
		return nil
	})
}

func prepareAll(ctx context.Context, chains []*chain) error {
	return forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		op, err := c.client.PrepareUserOperation(ctx, c.op)
		if err != nil {
			return err
		}
		c.op = op
		return nil
	})
}

func collect(chains []*chain) []*types.UserOperation {
	ops := make([]*types.UserOperation, len(chains))
	for i, c := range chains {
		ops[i] = c.op
	}
	return ops
}

// signDirect prepares every operation and signs it with the chain's
// already active regular validator.
func (a *Aggregator) signDirect(ctx context.Context, chains []*chain) ([]*types.UserOperation, error) {
	if err := buildDrafts(ctx, chains); err != nil {
		return nil, err
	}
	for _, c := range chains {
		c.op.Signature = append(validator.ModePlugin.Tag(), c.client.RegularValidator().StubSignature()...)
	}
	if err := prepareAll(ctx, chains); err != nil {
		return nil, err
	}
	err := forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		regular := c.client.RegularValidator()
		mode, err := regular.ReadMode(ctx, c.op)
		if err != nil {
			return err
		}
		if mode != validator.ModeSudo {
			mode = validator.ModePlugin
		}
		sig, err := regular.SignUserOperation(ctx, c.op)
		if err != nil {
			return err
		}
		c.op.Signature = append(mode.Tag(), sig...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(chains), nil
}

// signEnable commits to every chain's enable approval, has the authority
// sign the root once, and frames each operation in enable mode.
func (a *Aggregator) signEnable(ctx context.Context, chains []*chain) ([]*types.UserOperation, error) {
	leaves := make([]common.Hash, len(chains))
	enableData := make([][]byte, len(chains))
	err := forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		regular := c.client.RegularValidator()
		digest, err := validator.EnableDigest(ctx, regular, c.account, kernel.ExecuteSelector)
		if err != nil {
			return err
		}
		data, err := regular.EnableData(ctx)
		if err != nil {
			return err
		}
		leaves[c.index], enableData[c.index] = digest, data
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := buildDrafts(ctx, chains); err != nil {
		return nil, err
	}

	root, proofs, err := buildTree(leaves)
	if err != nil {
		return nil, err
	}
	rootSig, err := signRoot(ctx, a.Authority, root)
	if err != nil {
		return nil, err
	}
	approvals := make([][]byte, len(chains))
	for _, c := range chains {
		if approvals[c.index], err = EncodeMerkleApproval(root, proofs[c.index], rootSig); err != nil {
			return nil, c.wrap(err)
		}
		regular := c.client.RegularValidator()
		if c.op.Signature, err = enableFrame(regular, enableData[c.index], approvals[c.index], regular.StubSignature()); err != nil {
			return nil, c.wrap(err)
		}
	}

	if err := prepareAll(ctx, chains); err != nil {
		return nil, err
	}
	err = forEach(ctx, chains, func(ctx context.Context, c *chain) error {
		regular := c.client.RegularValidator()
		sig, err := regular.SignUserOperation(ctx, c.op)
		if err != nil {
			return err
		}
		c.op.Signature, err = enableFrame(regular, enableData[c.index], approvals[c.index], sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	return collect(chains), nil
}

func enableFrame(v validator.Validator, enableData, approval, sig []byte) ([]byte, error) {
	s := v.Settings()
	return validator.EncodeEnableFrame(&validator.EnableFrame{
		ValidUntil:      s.ValidUntil,
		ValidAfter:      s.ValidAfter,
		Validator:       s.Address,
		Executor:        s.Executor,
		EnableData:      enableData,
		EnableSignature: approval,
		Signature:       sig,
	})
}

// signMerkle commits to the operation hashes themselves and gives every
// operation the root signature with its own inclusion proof.
func (a *Aggregator) signMerkle(ctx context.Context, chains []*chain) ([]*types.UserOperation, error) {
	if err := buildDrafts(ctx, chains); err != nil {
		return nil, err
	}
	placeholder, err := merklePlaceholder(len(chains))
	if err != nil {
		return nil, err
	}
	for _, c := range chains {
		c.op.Signature = placeholder
	}
	if err := prepareAll(ctx, chains); err != nil {
		return nil, err
	}

	leaves := make([]common.Hash, len(chains))
	for _, c := range chains {
		if leaves[c.index], err = c.client.UserOperationHash(c.op); err != nil {
			return nil, c.wrap(err)
		}
	}
	root, proofs, err := buildTree(leaves)
	if err != nil {
		return nil, err
	}
	rootSig, err := signRoot(ctx, a.Authority, root)
	if err != nil {
		return nil, err
	}
	for _, c := range chains {
		approval, err := EncodeMerkleApproval(root, proofs[c.index], rootSig)
		if err != nil {
			return nil, c.wrap(err)
		}
		c.op.Signature = append(validator.ModeSudo.Tag(), approval...)
	}
	return collect(chains), nil
}

// merklePlaceholder is a sudo-framed approval of the size the final
// signature will have, used for estimation.
func merklePlaceholder(n int) ([]byte, error) {
	proof := make([]common.Hash, proofDepth(n))
	stub := make([]byte, 65)
	for i := range stub {
		stub[i] = 0xff
	}
	approval, err := EncodeMerkleApproval(common.Hash{}, proof, stub)
	if err != nil {
		return nil, err
	}
	return append(validator.ModeSudo.Tag(), approval...), nil
}
