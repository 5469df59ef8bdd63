package provider

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestIsReplacementUnderpriced(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"explicit message", underpriced(), true},
		{"pattern", &rpcError{msg: "replacement transaction underpriced"}, true},
		{"wrapped", fmt.Errorf("send: %w", &rpcError{msg: "op replacement underpriced"}), true},
		{"aggregated", multierror.Append(errors.New("dial tcp: refused"), &rpcError{msg: "replacement underpriced"}), true},
		{"other rpc error", &rpcError{msg: "AA21 didn't pay prefund"}, false},
		{"plain error", errors.New("replacement underpriced"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsReplacementUnderpriced(tt.err))
		})
	}
}

func TestUnwrapError(t *testing.T) {
	plain := errors.New("boom")
	require.Equal(t, plain, UnwrapError(plain))

	noFailedOp := &rpcError{msg: "AA25 invalid account nonce"}
	require.Equal(t, error(noFailedOp), UnwrapError(noFailedOp))

	raw := &rpcError{msg: "execution reverted: FailedOp(1,0x0000000000000000000000000000000000000000,AA23 reverted: a, b)"}
	err := UnwrapError(raw)
	var be *BundlerError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "1", be.Index)
	require.Equal(t, "0x0000000000000000000000000000000000000000", be.Paymaster)
	require.Equal(t, "AA23 reverted: a, b", be.Reason)
	require.ErrorIs(t, err, raw)
	require.Equal(t,
		"the bundler has failed to include UserOperation in a batch: AA23 reverted: a, b (paymaster address: 0x0000000000000000000000000000000000000000)",
		err.Error())
}

func TestBumpFee(t *testing.T) {
	fee := big.NewInt(1000)
	want := []int64{1130, 1276, 1441, 1628}
	for _, w := range want {
		var err error
		fee, err = BumpFee(fee)
		require.NoError(t, err)
		require.Equal(t, w, fee.Int64())
	}

	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := BumpFee(maxU256)
	require.ErrorIs(t, err, ErrFeeOverflow)
	_, err = BumpFee(new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorIs(t, err, ErrFeeOverflow)
	_, err = BumpFee(big.NewInt(-1))
	require.ErrorIs(t, err, ErrFeeOverflow)

	// Exact at magnitudes beyond 64 bits.
	big1 := new(big.Int).Lsh(big.NewInt(1), 200)
	got, err := BumpFee(big1)
	require.NoError(t, err)
	exp := new(big.Int).Div(new(big.Int).Mul(big1, big.NewInt(113)), big.NewInt(100))
	require.Equal(t, 0, exp.Cmp(got))
}
