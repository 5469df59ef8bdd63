package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/signer"
)

const maxWeight = 1<<24 - 1

var ErrRecoveryThreshold = errors.New("validator: recovery threshold unreachable")

// Guardian is a weighted recovery signer.
type Guardian struct {
	Authority signer.Authority
	Weight    uint32
}

// SocialRecoveryValidator authorizes operations with signatures from a
// weighted guardian set.
type SocialRecoveryValidator struct {
	*base
	guardians []Guardian
	threshold uint32
	delay     uint64
}

var recoveryArgs = abi.Arguments{
	{Type: types.MustABIType("address[]")},
	{Type: types.MustABIType("uint24[]")},
	{Type: types.MustABIType("uint24")},
	{Type: types.MustABIType("uint48")},
}

// NewSocialRecoveryValidator returns a validator over guardians, sorted by
// address. The total weight must reach threshold.
func NewSocialRecoveryValidator(settings Settings, reader AccountReader, guardians []Guardian, threshold uint32, delay uint64) (*SocialRecoveryValidator, error) {
	if len(guardians) == 0 {
		return nil, ErrNoGuardians
	}
	if delay > MaxTimestamp {
		return nil, ErrTimestampOverflow
	}
	var total uint64
	sorted := make([]Guardian, len(guardians))
	copy(sorted, guardians)
	for _, g := range sorted {
		if g.Weight > maxWeight {
			return nil, fmt.Errorf("validator: guardian %s weight %d exceeds 24 bits", g.Authority.Address(), g.Weight)
		}
		total += uint64(g.Weight)
	}
	if threshold == 0 || threshold > maxWeight || uint64(threshold) > total {
		return nil, ErrRecoveryThreshold
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Authority.Address().Bytes(), sorted[j].Authority.Address().Bytes()) < 0
	})
	v := &SocialRecoveryValidator{guardians: sorted, threshold: threshold, delay: delay}
	v.base = newBase(settings, reader, v)
	return v, nil
}

func (v *SocialRecoveryValidator) signHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return v.signMessage(ctx, hash.Bytes())
}

// signMessage concatenates every guardian's signature in address order.
func (v *SocialRecoveryValidator) signMessage(ctx context.Context, msg []byte) ([]byte, error) {
	out := make([]byte, 0, 65*len(v.guardians))
	for _, g := range v.guardians {
		sig, err := g.Authority.SignMessage(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("guardian %s: %w", g.Authority.Address(), err)
		}
		out = append(out, sig...)
	}
	return out, nil
}

// enableData is abi.encode(address[] guardians, uint24[] weights,
// uint24 threshold, uint48 delay).
func (v *SocialRecoveryValidator) enableData(context.Context) ([]byte, error) {
	addrs := make([]common.Address, len(v.guardians))
	weights := make([]*big.Int, len(v.guardians))
	for i, g := range v.guardians {
		addrs[i] = g.Authority.Address()
		weights[i] = new(big.Int).SetUint64(uint64(g.Weight))
	}
	return recoveryArgs.Pack(addrs, weights, new(big.Int).SetUint64(uint64(v.threshold)), new(big.Int).SetUint64(v.delay))
}

func (v *SocialRecoveryValidator) stub() []byte {
	return bytes.Repeat(ecdsaStub, len(v.guardians))
}
