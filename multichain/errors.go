package multichain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrTooFewOperations          = errors.New("multichain: at least two operations are required")
	ErrClientCountMismatch       = errors.New("multichain: number of clients and operations do not match")
	ErrChainMismatch             = errors.New("multichain: chain id mismatch")
	ErrAccountNotFound           = errors.New("multichain: account not found")
	ErrPluginStateInconsistent   = errors.New("multichain: plugins must be either all enabled or all disabled across chains")
	ErrMissingAuthoritySignature = errors.New("multichain: authority produced no root signature")
	ErrMalformedApproval         = errors.New("multichain: malformed merkle approval")
)

// ChainMismatchError reports a client bound to a different chain than the
// operation it was paired with.
type ChainMismatchError struct {
	Index  int
	Client *big.Int
	Intent *big.Int
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("multichain: chain id mismatch at index %d: client chain %v != operation chain %v", e.Index, e.Client, e.Intent)
}

func (e *ChainMismatchError) Is(target error) bool { return target == ErrChainMismatch }

// AccountNotFoundError reports a client with no connected account.
type AccountNotFoundError struct {
	Index int
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("multichain: account not found at index %d", e.Index)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }
