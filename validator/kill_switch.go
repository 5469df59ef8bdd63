package validator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/crypto"
	"github.com/zerodevapp/aa-sdk/signer"
)

// KillSwitchValidator lets a guardian pause the account until a deadline.
// Its signature is pauseUntil(6) followed by the guardian's signature over
// keccak256(pauseUntil || opHash).
type KillSwitchValidator struct {
	*base
	guardian   signer.Authority
	pauseUntil uint64
}

// NewKillSwitchValidator returns a validator pausing the account until
// pauseUntil (unix seconds).
func NewKillSwitchValidator(settings Settings, reader AccountReader, guardian signer.Authority, pauseUntil uint64) (*KillSwitchValidator, error) {
	if pauseUntil > MaxTimestamp {
		return nil, ErrTimestampOverflow
	}
	v := &KillSwitchValidator{guardian: guardian, pauseUntil: pauseUntil}
	v.base = newBase(settings, reader, v)
	return v, nil
}

func (v *KillSwitchValidator) signHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	pause := uint48(v.pauseUntil)
	sig, err := v.guardian.SignMessage(ctx, crypto.Keccak256(pause, hash.Bytes()))
	if err != nil {
		return nil, err
	}
	return append(pause, sig...), nil
}

func (v *KillSwitchValidator) signMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return v.guardian.SignMessage(ctx, msg)
}

func (v *KillSwitchValidator) enableData(context.Context) ([]byte, error) {
	return v.guardian.Address().Bytes(), nil
}

func (v *KillSwitchValidator) stub() []byte {
	return append(uint48(v.pauseUntil), ecdsaStub...)
}
