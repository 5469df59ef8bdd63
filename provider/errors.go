package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/kernel"
)

var (
	ErrAccountNotConnected   = errors.New("provider: account not connected")
	ErrValidatorNotConnected = errors.New("provider: validator not connected")
	ErrNoRegularValidator    = errors.New("provider: no regular validator configured")
	ErrFeeOverflow           = errors.New("provider: fee exceeds 256 bits")
	ErrForeignAddress        = errors.New("provider: cannot sign for address that is not the current account")
	ErrInitCodeTooShort      = errors.New("provider: init code shorter than a factory address")

	// ErrInvalidOperationKind is returned for a delegate call submitted
	// as a batch.
	ErrInvalidOperationKind = kernel.ErrInvalidOperationKind
)

// IncompleteOperationError reports an operation that still has unset
// fields after the pipeline ran.
type IncompleteOperationError struct {
	Missing []string
	// Dump is the indented JSON of the operation.
	Dump string
}

func newIncompleteOperationError(op *types.UserOperation, missing []string) *IncompleteOperationError {
	dump, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		dump = []byte(fmt.Sprintf("%+v", *op))
	}
	return &IncompleteOperationError{Missing: missing, Dump: string(dump)}
}

func (e *IncompleteOperationError) Error() string {
	return fmt.Sprintf("provider: operation is missing %s; all fields must be set. uo: %s",
		strings.Join(e.Missing, ", "), e.Dump)
}

const replacementMessage = "replacement op must increase maxFeePerGas and MaxPriorityFeePerGas"

var (
	replacementPattern = regexp.MustCompile(`.*replacement.*underpriced.*`)
	failedOpPattern    = regexp.MustCompile(`FailedOp\((.*)\)`)
)

// IsReplacementUnderpriced reports whether err is a bundler rejection of
// a replacement whose fees are too low. Such rejections are retryable.
func IsReplacementUnderpriced(err error) bool {
	msg, ok := bundlerMessage(err)
	if !ok {
		return false
	}
	return strings.Contains(msg, replacementMessage) || replacementPattern.MatchString(msg)
}

// BundlerError is a bundler rejection carrying a parsed FailedOp revert.
type BundlerError struct {
	// Index is the operation's position in the bundle, as reported.
	Index string
	// Paymaster is the paymaster address, or the zero address when the
	// operation is not sponsored.
	Paymaster string
	// Reason is the EntryPoint revert reason, e.g. "AA21 didn't pay prefund".
	Reason string
	// Err is the original JSON-RPC error.
	Err error
}

func (e *BundlerError) Error() string {
	return fmt.Sprintf("the bundler has failed to include UserOperation in a batch: %s (paymaster address: %s)",
		e.Reason, e.Paymaster)
}

func (e *BundlerError) Unwrap() error { return e.Err }

// UnwrapError turns a FailedOp(index,paymaster,reason) rejection into a
// *BundlerError. Any other error is returned unchanged.
func UnwrapError(err error) error {
	msg, ok := bundlerMessage(err)
	if !ok {
		return err
	}
	m := failedOpPattern.FindStringSubmatch(msg)
	if m == nil {
		return err
	}
	fields := strings.SplitN(m[1], ",", 3)
	if len(fields) < 3 {
		return err
	}
	return &BundlerError{
		Index:     strings.TrimSpace(fields[0]),
		Paymaster: strings.TrimSpace(fields[1]),
		Reason:    strings.TrimSpace(fields[2]),
		Err:       err,
	}
}

// bundlerMessage returns the message of the JSON-RPC error inside err.
func bundlerMessage(err error) (string, bool) {
	var rpcErr gethrpc.Error
	if !errors.As(err, &rpcErr) {
		return "", false
	}
	return rpcErr.Error(), true
}
