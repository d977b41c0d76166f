package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/waiter"
)

// ErrorKind enumerates Gateway failure classes.
type ErrorKind uint8

const (
	// KindUnreachable means the ledger could not be contacted or the
	// response was lost.
	KindUnreachable ErrorKind = iota
	// KindRejected means the ledger responded and refused the operation.
	KindRejected
	// KindTimeout means no answer was received before the deadline.
	KindTimeout
	// KindMalformed means the ledger answered with data of unexpected shape.
	KindMalformed
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is a Gateway failure.
type Error struct {
	Kind ErrorKind
	// Reason is a ledger-provided explanation, set for rejections.
	Reason string
	Err    error
}

// Sentinel errors to be used with errors.Is. They match any *Error of the
// same kind.
var (
	ErrUnreachable = &Error{Kind: KindUnreachable}
	ErrRejected    = &Error{Kind: KindRejected}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrMalformed   = &Error{Kind: KindMalformed}
)

func (e *Error) Error() string {
	msg := "gateway: " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func rejected(reason string, cause error) *Error {
	return &Error{Kind: KindRejected, Reason: reason, Err: cause}
}

func malformed(cause error) *Error {
	return &Error{Kind: KindMalformed, Err: cause}
}

// classify turns an error of the RPC layer into *Error. Errors already
// classified are returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gErr *Error
	if errors.As(err, &gErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, waiter.ErrContextDone):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, waiter.ErrTxNotAccepted):
		return rejected("transaction was not accepted to the chain", err)
	}

	var rpcErr *neorpc.Error
	if errors.As(err, &rpcErr) {
		return rejected(rpcErr.Message, err)
	}

	return &Error{Kind: KindUnreachable, Err: err}
}
