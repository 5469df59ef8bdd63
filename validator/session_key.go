package validator

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/signer"
)

// SessionKeyConfig scopes a session key to calls on contracts that
// implement InterfaceID, within a validity window.
type SessionKeyConfig struct {
	Selector    [4]byte
	InterfaceID [4]byte
	ValidUntil  uint64
	ValidAfter  uint64
	// AddressOffset is the calldata offset of the checked target address.
	AddressOffset uint32
}

// SessionKeyValidator authorizes operations with a scoped, short-lived key.
type SessionKeyValidator struct {
	*base
	sessionKey signer.Authority
	cfg        SessionKeyConfig
}

// NewSessionKeyValidator returns a validator signing with sessionKey.
func NewSessionKeyValidator(settings Settings, reader AccountReader, sessionKey signer.Authority, cfg SessionKeyConfig) *SessionKeyValidator {
	v := &SessionKeyValidator{sessionKey: sessionKey, cfg: cfg}
	v.base = newBase(settings, reader, v)
	return v
}

func (v *SessionKeyValidator) signHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return v.sessionKey.SignMessage(ctx, hash.Bytes())
}

func (v *SessionKeyValidator) signMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return v.sessionKey.SignMessage(ctx, msg)
}

// enableData is sessionKey(20) selector(4) interfaceId(4) validUntil(6)
// validAfter(6) addressOffset(4).
func (v *SessionKeyValidator) enableData(context.Context) ([]byte, error) {
	if v.cfg.ValidUntil > MaxTimestamp || v.cfg.ValidAfter > MaxTimestamp {
		return nil, ErrTimestampOverflow
	}
	out := make([]byte, 0, common.AddressLength+4+4+timeLen+timeLen+4)
	out = append(out, v.sessionKey.Address().Bytes()...)
	out = append(out, v.cfg.Selector[:]...)
	out = append(out, v.cfg.InterfaceID[:]...)
	out = append(out, uint48(v.cfg.ValidUntil)...)
	out = append(out, uint48(v.cfg.ValidAfter)...)
	return binary.BigEndian.AppendUint32(out, v.cfg.AddressOffset), nil
}

func (v *SessionKeyValidator) stub() []byte { return ecdsaStub }
