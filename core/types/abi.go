package types

import "github.com/ethereum/go-ethereum/accounts/abi"

// MustABIType parses a Solidity type name and panics on failure. It is
// meant for package-level argument lists built from constant names.
func MustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}
