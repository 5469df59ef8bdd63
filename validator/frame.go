package validator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxTimestamp is the largest value a 48-bit validity bound can carry.
const MaxTimestamp = 1<<48 - 1

const (
	tagLen      = 4
	timeLen     = 6
	wordLen     = 32
	frameHeader = tagLen + 2*timeLen + 2*common.AddressLength
)

var (
	ErrTimestampOverflow = errors.New("validator: timestamp exceeds 48 bits")
	ErrFrameTruncated    = errors.New("validator: enable frame truncated")
	ErrFrameMode         = errors.New("validator: frame is not an enable frame")
)

// EnableFrame is the signature layout of an operation that enables a
// validator and is validated by it in the same step.
type EnableFrame struct {
	ValidUntil      uint64
	ValidAfter      uint64
	Validator       common.Address
	Executor        common.Address
	EnableData      []byte
	EnableSignature []byte
	Signature       []byte
}

// EncodeEnableFrame lays out f as
//
//	tag(4) validUntil(6) validAfter(6) validator(20) executor(20)
//	len(32) enableData len(32) enableSignature signature
func EncodeEnableFrame(f *EnableFrame) ([]byte, error) {
	if f.ValidUntil > MaxTimestamp || f.ValidAfter > MaxTimestamp {
		return nil, ErrTimestampOverflow
	}
	out := make([]byte, 0, frameHeader+2*wordLen+len(f.EnableData)+len(f.EnableSignature)+len(f.Signature))
	out = append(out, ModeEnable.Tag()...)
	out = append(out, uint48(f.ValidUntil)...)
	out = append(out, uint48(f.ValidAfter)...)
	out = append(out, f.Validator.Bytes()...)
	out = append(out, f.Executor.Bytes()...)
	out = append(out, lengthWord(len(f.EnableData))...)
	out = append(out, f.EnableData...)
	out = append(out, lengthWord(len(f.EnableSignature))...)
	out = append(out, f.EnableSignature...)
	return append(out, f.Signature...), nil
}

// DecodeEnableFrame parses an encoded enable frame. Every remaining byte
// after the enable signature belongs to the operation signature.
func DecodeEnableFrame(b []byte) (*EnableFrame, error) {
	if len(b) < frameHeader+wordLen {
		return nil, ErrFrameTruncated
	}
	if Mode(binary.BigEndian.Uint32(b[:tagLen])) != ModeEnable {
		return nil, ErrFrameMode
	}
	f := &EnableFrame{
		ValidUntil: readUint48(b[tagLen:]),
		ValidAfter: readUint48(b[tagLen+timeLen:]),
		Validator:  common.BytesToAddress(b[tagLen+2*timeLen : tagLen+2*timeLen+common.AddressLength]),
		Executor:   common.BytesToAddress(b[tagLen+2*timeLen+common.AddressLength : frameHeader]),
	}
	rest := b[frameHeader:]
	var err error
	if f.EnableData, rest, err = readChunk(rest); err != nil {
		return nil, fmt.Errorf("enable data: %w", err)
	}
	if f.EnableSignature, rest, err = readChunk(rest); err != nil {
		return nil, fmt.Errorf("enable signature: %w", err)
	}
	f.Signature = append([]byte{}, rest...)
	return f, nil
}

func readChunk(b []byte) (chunk, rest []byte, err error) {
	if len(b) < wordLen {
		return nil, nil, ErrFrameTruncated
	}
	n := new(uint256.Int).SetBytes32(b[:wordLen])
	if !n.IsUint64() || n.Uint64() > uint64(len(b)-wordLen) {
		return nil, nil, ErrFrameTruncated
	}
	end := wordLen + int(n.Uint64())
	return append([]byte{}, b[wordLen:end]...), b[end:], nil
}

func lengthWord(n int) []byte {
	word := uint256.NewInt(uint64(n)).Bytes32()
	return word[:]
}

func uint48(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[2:]
}

func readUint48(b []byte) uint64 {
	var buf [8]byte
	copy(buf[2:], b[:timeLen])
	return binary.BigEndian.Uint64(buf[:])
}
