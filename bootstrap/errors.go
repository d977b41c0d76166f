package bootstrap

import "fmt"

// ConnectionErrorKind enumerates reasons of a failed Connect.
type ConnectionErrorKind uint8

const (
	// NoIdentity means no account was authorized for the session.
	NoIdentity ConnectionErrorKind = iota
	// NoGateway means no RPC endpoint could be reached.
	NoGateway
)

// String implements fmt.Stringer.
func (k ConnectionErrorKind) String() string {
	switch k {
	case NoIdentity:
		return "no identity"
	case NoGateway:
		return "no gateway"
	default:
		return fmt.Sprintf("ConnectionErrorKind(%d)", uint8(k))
	}
}

// ConnectionError is returned by Connect.
type ConnectionError struct {
	Kind ConnectionErrorKind
	Err  error
}

// Sentinel errors to be used with errors.Is.
var (
	ErrNoIdentity = &ConnectionError{Kind: NoIdentity}
	ErrNoGateway  = &ConnectionError{Kind: NoGateway}
)

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "connect: " + e.Kind.String()
	}
	return "connect: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *ConnectionError of the same kind.
func (e *ConnectionError) Is(target error) bool {
	t, ok := target.(*ConnectionError)
	return ok && t.Kind == e.Kind
}
