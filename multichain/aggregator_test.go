package multichain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/crypto"
	"github.com/zerodevapp/aa-sdk/kernel"
	"github.com/zerodevapp/aa-sdk/provider"
	"github.com/zerodevapp/aa-sdk/rpc"
	"github.com/zerodevapp/aa-sdk/signer"
	"github.com/zerodevapp/aa-sdk/validator"
)

var (
	entryPoint    = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	sudoAddr      = common.HexToAddress("0xd9AB5096a832b9ce79914329DAEE236f8Eea0390")
	regularAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	accountAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	targetAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	sudoKeyHex    = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	regularKeyHex = "0x8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

// countingAuthority counts every signature it produces.
type countingAuthority struct {
	*signer.PrivateKey
	calls *atomic.Int32
}

func (c countingAuthority) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	c.calls.Add(1)
	return c.PrivateKey.SignMessage(ctx, msg)
}

func (c countingAuthority) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	c.calls.Add(1)
	return c.PrivateKey.SignTypedData(ctx, td)
}

type fakeAccount struct{}

func (fakeAccount) Address() common.Address    { return accountAddr }
func (fakeAccount) EntryPoint() common.Address { return entryPoint }
func (fakeAccount) EncodeCallData(a types.Action) ([]byte, error) {
	return kernel.EncodeCallData(a)
}
func (fakeAccount) InitCode(context.Context) ([]byte, error) { return []byte{}, nil }
func (fakeAccount) Nonce(context.Context) (*big.Int, error)  { return big.NewInt(5), nil }

type fakeBundler struct{ estimates atomic.Int32 }

func (b *fakeBundler) SendUserOperation(context.Context, *types.UserOperation, common.Address) (common.Hash, error) {
	return common.Hash{}, errors.New("not used")
}

func (b *fakeBundler) EstimateUserOperationGas(context.Context, *types.UserOperation, common.Address) (*rpc.GasEstimate, error) {
	b.estimates.Add(1)
	return &rpc.GasEstimate{
		PreVerificationGas:   (*hexutil.Big)(big.NewInt(50_000)),
		VerificationGasLimit: (*hexutil.Big)(big.NewInt(300_000)),
		CallGasLimit:         (*hexutil.Big)(big.NewInt(40_000)),
	}, nil
}

func (b *fakeBundler) SupportedEntryPoints(context.Context) ([]common.Address, error) {
	return nil, nil
}

func (b *fakeBundler) ChainID(context.Context) (*big.Int, error) { return nil, nil }

type fees struct{}

func (fees) SuggestFees(context.Context) (*big.Int, *big.Int, error) {
	return big.NewInt(1000), big.NewInt(100), nil
}

// accountState answers validator reads for one chain.
type accountState struct {
	registered bool
	err        error
}

func (s accountState) DefaultValidator(context.Context, common.Address) (common.Address, error) {
	if s.err != nil {
		return common.Address{}, s.err
	}
	return sudoAddr, nil
}

func (s accountState) Execution(context.Context, common.Address, [4]byte) (types.Execution, error) {
	if s.err != nil {
		return types.Execution{}, s.err
	}
	if s.registered {
		return types.Execution{Validator: regularAddr}, nil
	}
	return types.Execution{}, nil
}

type pluginCheck struct{ err error }

func (p pluginCheck) IsInitialized(context.Context, common.Address, common.Address) (bool, error) {
	return false, p.err
}

type fixture struct {
	authority    countingAuthority
	regularKey   *signer.PrivateKey
	regularCalls *atomic.Int32
	bundler      *fakeBundler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sudoKey, err := signer.HexToPrivateKey(sudoKeyHex)
	require.NoError(t, err)
	regularKey, err := signer.HexToPrivateKey(regularKeyHex)
	require.NoError(t, err)
	return &fixture{
		authority:    countingAuthority{PrivateKey: sudoKey, calls: new(atomic.Int32)},
		regularKey:   regularKey,
		regularCalls: new(atomic.Int32),
		bundler:      &fakeBundler{},
	}
}

// client builds a provider on chainID. A nil registered leaves the
// regular validator unconfigured.
func (f *fixture) client(chainID int64, registered *bool, plugins provider.PluginChecker) *provider.Provider {
	if registered == nil {
		return f.clientWithState(chainID, nil, plugins)
	}
	return f.clientWithState(chainID, &accountState{registered: *registered}, plugins)
}

// clientWithState is client with the regular validator reading state.
func (f *fixture) clientWithState(chainID int64, state *accountState, plugins provider.PluginChecker) *provider.Provider {
	sudo := validator.NewECDSAValidator(validator.Settings{
		Address: sudoAddr, EntryPoint: entryPoint, ChainID: big.NewInt(chainID), Mode: validator.ModeSudo,
	}, accountState{}, f.authority)
	cfg := provider.Config{
		ChainID:   big.NewInt(chainID),
		Account:   fakeAccount{},
		Validator: sudo,
		Bundler:   f.bundler,
		FeeOracle: fees{},
		Plugins:   plugins,
	}
	if state != nil {
		cfg.RegularValidator = validator.NewECDSAValidator(validator.Settings{
			Address:    regularAddr,
			EntryPoint: entryPoint,
			ChainID:    big.NewInt(chainID),
			Mode:       validator.ModePlugin,
			ValidUntil: 1_900_000_000,
		}, *state, countingAuthority{PrivateKey: f.regularKey, calls: f.regularCalls})
	}
	return provider.New(cfg)
}

func intents(chainIDs ...int64) []Intent {
	out := make([]Intent, len(chainIDs))
	for i, id := range chainIDs {
		out[i] = Intent{ChainID: big.NewInt(id), Action: types.SingleCall(targetAddr, big.NewInt(int64(i)), nil)}
	}
	return out
}

func ptr(b bool) *bool { return &b }

func recoverOpSigner(t *testing.T, c Client, op *types.UserOperation, sig []byte) common.Address {
	t.Helper()
	hash, err := c.UserOperationHash(op)
	require.NoError(t, err)
	addr, err := signer.RecoverMessageSigner(hash.Bytes(), sig)
	require.NoError(t, err)
	return addr
}

func TestAllEnabledSignsDirectly(t *testing.T) {
	f := newFixture(t)
	clients := []Client{f.client(1, ptr(true), nil), f.client(137, ptr(true), nil)}
	agg := &Aggregator{Authority: f.authority}

	ops, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.Zero(t, f.authority.calls.Load())

	for i, op := range ops {
		require.Empty(t, op.MissingFields())
		require.Equal(t, validator.ModePlugin.Tag(), op.Signature[:4])
		require.Equal(t, f.regularKey.Address(), recoverOpSigner(t, clients[i], op, op.Signature[4:]))
	}
}

func TestNoneEnabledUsesEnableFlow(t *testing.T) {
	f := newFixture(t)
	clients := []Client{f.client(1, ptr(false), nil), f.client(137, ptr(false), nil)}
	agg := &Aggregator{Authority: f.authority}

	ops, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.NoError(t, err)
	require.Equal(t, int32(1), f.authority.calls.Load())

	var roots []common.Hash
	for i, op := range ops {
		frame, err := validator.DecodeEnableFrame(op.Signature)
		require.NoError(t, err)
		require.Equal(t, regularAddr, frame.Validator)
		require.Equal(t, uint64(1_900_000_000), frame.ValidUntil)
		require.Equal(t, f.regularKey.Address().Bytes(), frame.EnableData)

		root, proof, rootSig, err := DecodeMerkleApproval(frame.EnableSignature)
		require.NoError(t, err)
		roots = append(roots, root)

		leaf, err := validator.EnableDigest(context.Background(), clients[i].RegularValidator(), accountAddr, kernel.ExecuteSelector)
		require.NoError(t, err)
		require.True(t, crypto.VerifyMerkleProof(leaf, proof, root))

		signedBy, err := signer.RecoverMessageSigner(accounts.TextHash(root.Bytes()), rootSig)
		require.NoError(t, err)
		require.Equal(t, f.authority.Address(), signedBy)

		require.Equal(t, f.regularKey.Address(), recoverOpSigner(t, clients[i], op, frame.Signature))
	}
	require.Equal(t, roots[0], roots[1])
}

func TestMixedPluginStateFailsBeforeSigning(t *testing.T) {
	f := newFixture(t)
	clients := []Client{f.client(1, ptr(true), nil), f.client(137, ptr(false), nil)}
	agg := &Aggregator{Authority: f.authority}

	ops, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.ErrorIs(t, err, ErrPluginStateInconsistent)
	require.Nil(t, ops)
	require.Zero(t, f.authority.calls.Load())
	require.Zero(t, f.regularCalls.Load())
	require.Zero(t, f.bundler.estimates.Load())
}

func TestPluginStateQueryFailureAborts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("node unavailable")
	clients := []Client{f.client(1, ptr(false), nil), f.client(137, ptr(false), pluginCheck{err: boom})}
	agg := &Aggregator{Authority: f.authority}

	_, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.ErrorIs(t, err, boom)
	require.Zero(t, f.authority.calls.Load())
}

func TestRegularValidatorReadFailureAborts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("node unavailable")
	clients := []Client{
		f.client(1, ptr(true), nil),
		f.clientWithState(137, &accountState{err: boom}, nil),
	}
	agg := &Aggregator{Authority: f.authority}

	ops, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.ErrorIs(t, err, boom)
	require.Nil(t, ops)
	require.Zero(t, f.authority.calls.Load())
	require.Zero(t, f.regularCalls.Load())
}

func TestWithoutRegularValidatorSignsOperationHashes(t *testing.T) {
	f := newFixture(t)
	clients := []Client{f.client(1, nil, nil), f.client(10, nil, nil), f.client(137, nil, nil)}
	agg := &Aggregator{Authority: f.authority}

	ops, err := agg.PrepareAndSign(context.Background(), clients, intents(1, 10, 137))
	require.NoError(t, err)
	require.Equal(t, int32(1), f.authority.calls.Load())

	for i, op := range ops {
		require.Equal(t, validator.ModeSudo.Tag(), op.Signature[:4])
		root, proof, rootSig, err := DecodeMerkleApproval(op.Signature[4:])
		require.NoError(t, err)

		hash, err := clients[i].UserOperationHash(op)
		require.NoError(t, err)
		require.True(t, crypto.VerifyMerkleProof(hash, proof, root))

		signedBy, err := signer.RecoverMessageSigner(accounts.TextHash(root.Bytes()), rootSig)
		require.NoError(t, err)
		require.Equal(t, f.authority.Address(), signedBy)
	}
}

func TestMissingAuthority(t *testing.T) {
	f := newFixture(t)
	clients := []Client{f.client(1, nil, nil), f.client(137, nil, nil)}
	_, err := (&Aggregator{}).PrepareAndSign(context.Background(), clients, intents(1, 137))
	require.ErrorIs(t, err, ErrMissingAuthoritySignature)
}

func TestBatchShape(t *testing.T) {
	f := newFixture(t)
	agg := &Aggregator{Authority: f.authority}
	ctx := context.Background()

	_, err := agg.PrepareAndSign(ctx, []Client{f.client(1, nil, nil)}, intents(1))
	require.ErrorIs(t, err, ErrTooFewOperations)

	_, err = agg.PrepareAndSign(ctx, []Client{f.client(1, nil, nil), f.client(2, nil, nil)}, intents(1, 2, 3))
	require.ErrorIs(t, err, ErrClientCountMismatch)

	_, err = agg.PrepareAndSign(ctx, []Client{f.client(1, nil, nil), f.client(2, nil, nil)}, intents(1, 3))
	require.ErrorIs(t, err, ErrChainMismatch)
	var mismatch *ChainMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, 1, mismatch.Index)
	require.Equal(t, int64(3), mismatch.Intent.Int64())

	noAccount := provider.New(provider.Config{ChainID: big.NewInt(2)})
	_, err = agg.PrepareAndSign(ctx, []Client{f.client(1, nil, nil), noAccount}, intents(1, 2))
	require.ErrorIs(t, err, ErrAccountNotFound)
	var notFound *AccountNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, 1, notFound.Index)

	require.Zero(t, f.authority.calls.Load())
}

func TestMerkleApprovalRoundTrip(t *testing.T) {
	root := common.HexToHash("0x01")
	proof := []common.Hash{common.HexToHash("0x02"), common.HexToHash("0x03")}
	sig := []byte{0xaa, 0xbb}

	enc, err := EncodeMerkleApproval(root, proof, sig)
	require.NoError(t, err)
	gotRoot, gotProof, gotSig, err := DecodeMerkleApproval(enc)
	require.NoError(t, err)
	require.Equal(t, root, gotRoot)
	require.Equal(t, proof, gotProof)
	require.Equal(t, sig, gotSig)

	for n, want := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4} {
		require.Equal(t, want, proofDepth(n), "n=%d", n)
	}
}
