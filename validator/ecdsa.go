package validator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/signer"
)

// ECDSAValidator authorizes operations with a single owner key.
type ECDSAValidator struct {
	*base
	owner signer.Authority
}

// NewECDSAValidator returns a validator signing with owner.
func NewECDSAValidator(settings Settings, reader AccountReader, owner signer.Authority) *ECDSAValidator {
	v := &ECDSAValidator{owner: owner}
	v.base = newBase(settings, reader, v)
	return v
}

// Owner returns the owner address.
func (v *ECDSAValidator) Owner() common.Address { return v.owner.Address() }

func (v *ECDSAValidator) signHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return v.owner.SignMessage(ctx, hash.Bytes())
}

func (v *ECDSAValidator) signMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return v.owner.SignMessage(ctx, msg)
}

func (v *ECDSAValidator) enableData(context.Context) ([]byte, error) {
	return v.owner.Address().Bytes(), nil
}

func (v *ECDSAValidator) stub() []byte { return ecdsaStub }
