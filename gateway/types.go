package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ErrInvalidWindow is returned when a window's start is not before its end.
var ErrInvalidWindow = errors.New("voting window start must precede its end")

// Window is a [Start, End) time range during which votes are accepted. Zero
// Window means the dates are not set on the ledger yet and contains no
// instant.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsSet checks whether w has been configured on the ledger.
func (w Window) IsSet() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

// Contains checks whether t falls within [w.Start, w.End).
func (w Window) Contains(t time.Time) bool {
	return w.IsSet() && !t.Before(w.Start) && t.Before(w.End)
}

// Validate checks that w.Start precedes w.End.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// Candidate is a roster entry with its ledger-confirmed tally.
type Candidate struct {
	ID          uint64
	Name        string
	Affiliation string
	VoteCount   uint64
}

// Confirmation describes a write accepted by the ledger.
type Confirmation struct {
	TxHash      util.Uint256
	VUB         uint32
	GasConsumed int64
}

// Gateway groups operations of the Voting contract needed by a voting
// session. All methods are safe for concurrent use and block until the
// result is known or ctx is done.
type Gateway interface {
	// ReadWindow returns voting dates stored on the ledger.
	ReadWindow(ctx context.Context) (Window, error)

	// ReadRoster returns all registered candidates in ascending ID order.
	// Each call re-fetches the full roster.
	ReadRoster(ctx context.Context) ([]Candidate, error)

	// ReadVoteStatus checks whether account has already voted.
	ReadVoteStatus(ctx context.Context, account util.Uint160) (bool, error)

	// SubmitVote sends a vote of account for the candidate and waits for
	// the transaction to be persisted.
	SubmitVote(ctx context.Context, account util.Uint160, candidateID uint64) (Confirmation, error)

	// RegisterCandidate adds a new candidate to the roster.
	RegisterCandidate(ctx context.Context, name, affiliation string) (Confirmation, error)

	// SetWindow sets voting dates.
	SetWindow(ctx context.Context, w Window) (Confirmation, error)
}
