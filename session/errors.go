package session

import (
	"errors"
	"fmt"
)

// VoteErrorKind enumerates reasons of a failed CastVote.
type VoteErrorKind uint8

const (
	// UnknownCandidate means there is no such candidate in the roster.
	UnknownCandidate VoteErrorKind = iota
	// NotEligible means the account has voted, the voting window is closed
	// or the session is not synchronized.
	NotEligible
	// AlreadyPending means another vote of the session is being submitted.
	AlreadyPending
	// Rejected means the ledger refused the vote.
	Rejected
	// Indeterminate means the vote outcome is unknown. It is resolved by
	// the next synchronization.
	Indeterminate
)

// String implements fmt.Stringer.
func (k VoteErrorKind) String() string {
	switch k {
	case UnknownCandidate:
		return "unknown candidate"
	case NotEligible:
		return "not eligible"
	case AlreadyPending:
		return "already pending"
	case Rejected:
		return "rejected"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("VoteErrorKind(%d)", uint8(k))
	}
}

// VoteError is returned by Controller.CastVote.
type VoteError struct {
	Kind VoteErrorKind
	// Reason is a ledger-provided explanation of the rejection.
	Reason string
	Err    error
}

// Sentinel errors to be used with errors.Is.
var (
	ErrUnknownCandidate = &VoteError{Kind: UnknownCandidate}
	ErrNotEligible      = &VoteError{Kind: NotEligible}
	ErrAlreadyPending   = &VoteError{Kind: AlreadyPending}
	ErrRejected         = &VoteError{Kind: Rejected}
	ErrIndeterminate    = &VoteError{Kind: Indeterminate}
)

// ErrEmptyName is returned by Controller.RegisterCandidate for blank names.
var ErrEmptyName = errors.New("candidate name is empty")

func (e *VoteError) Error() string {
	msg := "vote: " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VoteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *VoteError of the same kind.
func (e *VoteError) Is(target error) bool {
	t, ok := target.(*VoteError)
	return ok && t.Kind == e.Kind
}
