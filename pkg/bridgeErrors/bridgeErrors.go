// Package bridgeErrors holds the error kinds surfaced by the signing bridge.
//
// Every fatal failure returned to a caller wraps exactly one of the sentinel kinds below so
// callers can branch with errors.Is regardless of which component raised it.
package bridgeErrors

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrUserRejected means the external signer declined the request.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNetworkUnregistered means a network switch failed because the connector does not
	// know the target network. The chain guard recovers from it locally.
	ErrNetworkUnregistered = errors.New("network is not registered with the connector")

	// ErrNoSourceAddressMapping means a target address could not be resolved to a source
	// address even after rebuilding the map from persisted metadata.
	ErrNoSourceAddressMapping = errors.New("no source address mapping for target address")

	// ErrNoAccountsFound means the connector reported zero source addresses.
	ErrNoAccountsFound = errors.New("no accounts found")

	// ErrProviderUnavailable means no usable provider could be obtained from the connector.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMultipleSigners means the eligible entries of one batch resolve to more than one
	// source address.
	ErrMultipleSigners = errors.New("eligible transactions belong to more than one signer")

	// ErrOperationInProgress means a signing call is already running on this wallet.
	ErrOperationInProgress = errors.New("operation already in progress")

	// ErrInvalidTransactionGroup means a transaction group could not be normalized.
	ErrInvalidTransactionGroup = errors.New("invalid transaction group")

	// ErrMixedEncodings means one transaction group mixed structured and encoded entries.
	ErrMixedEncodings = errors.New("structured and encoded transactions cannot be mixed in one group")
)

// Provider error codes shared by EIP-1193 style connectors.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeInternalError     = -32603
)

type BridgeError struct {
	Kind error
	Op   string
	Err  error
}

func (e *BridgeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with one of the sentinel kinds. A nil err still yields an error carrying
// the kind.
func Wrap(kind error, op string, err error) error {
	return &BridgeError{Kind: kind, Op: op, Err: err}
}

// ErrorCode extracts the JSON-RPC error code from err, looking through wrapped errors.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// FromProviderError translates provider errors with a known meaning into bridge kinds.
// Errors without a recognised code are returned unchanged.
func FromProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserRejected) {
		return err
	}
	if code, ok := ErrorCode(err); ok && code == CodeUserRejected {
		return Wrap(ErrUserRejected, op, err)
	}
	return err
}
