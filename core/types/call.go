package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OperationKind selects how a single call is executed by the account.
type OperationKind uint8

const (
	// KindCall executes the target with a regular CALL.
	KindCall OperationKind = iota
	// KindDelegateCall executes the target's code in the account's context.
	// It cannot be combined with a batch.
	KindDelegateCall
)

func (k OperationKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindDelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Call is one call the account performs.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Action is the target of a user operation: one call, or a batch of calls.
// A batch holding a single call is still encoded as a batch.
type Action struct {
	Calls   []Call
	Kind    OperationKind
	Batched bool
}

// SingleCall returns an action executing one regular call.
func SingleCall(to common.Address, value *big.Int, data []byte) Action {
	return Action{Calls: []Call{{To: to, Value: value, Data: data}}, Kind: KindCall}
}

// DelegateCall returns an action executing one delegate call.
func DelegateCall(to common.Address, data []byte) Action {
	return Action{Calls: []Call{{To: to, Data: data}}, Kind: KindDelegateCall}
}

// Batch returns an action executing the calls in order.
func Batch(calls ...Call) Action {
	return Action{Calls: calls, Kind: KindCall, Batched: true}
}

// IsBatch reports whether the action is executed as a batch.
func (a Action) IsBatch() bool { return a.Batched || len(a.Calls) > 1 }

// Execution is the executor/validator pair an account registered for a
// function selector.
type Execution struct {
	ValidUntil *big.Int       `json:"validUntil"`
	ValidAfter *big.Int       `json:"validAfter"`
	Executor   common.Address `json:"executor"`
	Validator  common.Address `json:"validator"`
}
