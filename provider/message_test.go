package provider

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/zerodevapp/aa-sdk/signer"
)

func TestSignMessageDeployedAccount(t *testing.T) {
	h := newHarness(t)
	msg := []byte("hello kernel")

	sig, err := h.provider.SignMessage(context.Background(), testAccount, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	recovered, err := signer.RecoverMessageSigner(msg, sig)
	require.NoError(t, err)
	require.Equal(t, h.owner.Address(), recovered)
}

func TestSignMessageUndeployedAccountIsWrapped(t *testing.T) {
	h := newHarness(t)
	factory := common.HexToAddress("0x5de4839a76cf55d0c90e2061ef4386d962E15ae3")
	factoryData := []byte{0x29, 0x6f, 0xa5, 0x6c, 0x01, 0x02}
	h.account.initCode = append(factory.Bytes(), factoryData...)
	msg := []byte("hello kernel")

	wrapped, err := h.provider.SignMessage(context.Background(), testAccount, msg)
	require.NoError(t, err)
	require.Equal(t, erc6492Magic, wrapped[len(wrapped)-32:])

	gotFactory, calldata, sig, ok := UnwrapERC6492(wrapped)
	require.True(t, ok)
	require.Equal(t, factory, gotFactory)
	require.Equal(t, factoryData, calldata)
	recovered, err := signer.RecoverMessageSigner(msg, sig)
	require.NoError(t, err)
	require.Equal(t, h.owner.Address(), recovered)
}

func TestSignMessageRejectsForeignAddress(t *testing.T) {
	h := newHarness(t)
	_, err := h.provider.SignMessage(context.Background(), testTarget, []byte("x"))
	require.ErrorIs(t, err, ErrForeignAddress)
	require.Zero(t, h.account.networkHits)

	h.provider.account = nil
	_, err = h.provider.SignMessage(context.Background(), testAccount, []byte("x"))
	require.ErrorIs(t, err, ErrAccountNotConnected)
}

func TestWrapERC6492(t *testing.T) {
	_, err := WrapERC6492([]byte{0x01}, []byte{0x02})
	require.ErrorIs(t, err, ErrInitCodeTooShort)

	_, _, _, ok := UnwrapERC6492(make([]byte, 65))
	require.False(t, ok)
}
