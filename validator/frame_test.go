package validator

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEnableFrameRoundTrip(t *testing.T) {
	lengths := []int{0, 1, 300}
	for _, dataLen := range lengths {
		for _, sigLen := range lengths {
			f := &EnableFrame{
				ValidUntil:      MaxTimestamp,
				ValidAfter:      1_700_000_000,
				Validator:       common.HexToAddress("0xd9AB5096a832b9ce79914329DAEE236f8Eea0390"),
				Executor:        common.HexToAddress("0x00000000000000000000000000000000000000e1"),
				EnableData:      bytes.Repeat([]byte{0xab}, dataLen),
				EnableSignature: bytes.Repeat([]byte{0xcd}, sigLen),
				Signature:       bytes.Repeat([]byte{0xef}, 65),
			}
			enc, err := EncodeEnableFrame(f)
			require.NoError(t, err)
			require.Len(t, enc, 88+dataLen+32+sigLen+65)

			// Fixed offsets.
			require.Equal(t, ModeEnable.Tag(), enc[0:4])
			require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, enc[4:10])
			require.Equal(t, f.Validator.Bytes(), enc[16:36])
			require.Equal(t, f.Executor.Bytes(), enc[36:56])
			require.Equal(t, uint64(dataLen), new(big.Int).SetBytes(enc[56:88]).Uint64())
			require.Equal(t, f.EnableData, enc[88:88+dataLen])
			sigOff := 88 + dataLen
			require.Equal(t, uint64(sigLen), new(big.Int).SetBytes(enc[sigOff:sigOff+32]).Uint64())
			require.Equal(t, f.Signature, enc[sigOff+32+sigLen:])

			dec, err := DecodeEnableFrame(enc)
			require.NoError(t, err)
			require.Equal(t, f.ValidUntil, dec.ValidUntil)
			require.Equal(t, f.ValidAfter, dec.ValidAfter)
			require.Equal(t, f.Validator, dec.Validator)
			require.Equal(t, f.Executor, dec.Executor)
			require.True(t, bytes.Equal(f.EnableData, dec.EnableData))
			require.True(t, bytes.Equal(f.EnableSignature, dec.EnableSignature))
			require.Equal(t, f.Signature, dec.Signature)
		}
	}
}

func TestEnableFrameTimestampOverflow(t *testing.T) {
	_, err := EncodeEnableFrame(&EnableFrame{ValidUntil: MaxTimestamp + 1})
	require.ErrorIs(t, err, ErrTimestampOverflow)
	_, err = EncodeEnableFrame(&EnableFrame{ValidAfter: MaxTimestamp + 1})
	require.ErrorIs(t, err, ErrTimestampOverflow)
}

func TestDecodeEnableFrameRejectsMalformed(t *testing.T) {
	enc, err := EncodeEnableFrame(&EnableFrame{EnableData: []byte{1, 2, 3}, EnableSignature: []byte{4}})
	require.NoError(t, err)

	_, err = DecodeEnableFrame(enc[:60])
	require.ErrorIs(t, err, ErrFrameTruncated)

	// Cut inside the enable signature length word.
	_, err = DecodeEnableFrame(enc[:88+3+10])
	require.ErrorIs(t, err, ErrFrameTruncated)

	// Length word larger than the remaining bytes.
	bad := append([]byte{}, enc...)
	binary.BigEndian.PutUint64(bad[80:88], 1<<40)
	_, err = DecodeEnableFrame(bad)
	require.ErrorIs(t, err, ErrFrameTruncated)

	sudo := append([]byte{}, enc...)
	copy(sudo[:4], ModeSudo.Tag())
	_, err = DecodeEnableFrame(sudo)
	require.ErrorIs(t, err, ErrFrameMode)
}

func TestModeParseAndTag(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		tag  []byte
	}{
		{"sudo", ModeSudo, []byte{0, 0, 0, 0}},
		{"", ModeSudo, []byte{0, 0, 0, 0}},
		{"Plugin", ModePlugin, []byte{0, 0, 0, 1}},
		{" enable ", ModeEnable, []byte{0, 0, 0, 2}},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
		require.Equal(t, tt.tag, got.Tag())
	}
	_, err := ParseMode("root")
	require.Error(t, err)
	require.Equal(t, "plugin", ModePlugin.String())
}
