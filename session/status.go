package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/nspcc-dev/voting-client/gateway"
)

// VoteStatus is the local knowledge of whether the session account has voted.
type VoteStatus uint8

const (
	// NotVoted means the ledger confirmed there is no vote of the account.
	NotVoted VoteStatus = iota
	// Unknown means a vote may have been cast but is not confirmed yet.
	Unknown
	// Voted means the ledger confirmed the vote. It is terminal.
	Voted
)

// String implements fmt.Stringer.
func (s VoteStatus) String() string {
	switch s {
	case NotVoted:
		return "not voted"
	case Unknown:
		return "unknown"
	case Voted:
		return "voted"
	default:
		return fmt.Sprintf("VoteStatus(%d)", uint8(s))
	}
}

// State is the Controller lifecycle state.
type State uint8

const (
	// Uninitialized is the state before the first synchronization.
	Uninitialized State = iota
	// Synchronizing means a synchronization round is in progress.
	Synchronizing
	// Ready means the cached ledger data is consistent and usable.
	Ready
	// Submitting means a vote is being submitted.
	Submitting
	// Errored means the last synchronization failed. Voting is disabled
	// until the next successful one.
	Errored
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Synchronizing:
		return "synchronizing"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Snapshot is an immutable view of the session state. Snapshots are passed
// by value and never share memory with the Controller.
type Snapshot struct {
	// Round is the number of the synchronization round which produced the
	// ledger data. Zero means there is no data yet.
	Round uint64

	State State

	// Account is the Neo address of the session account.
	Account string

	Window gateway.Window

	// Roster in ascending ID order.
	Roster []gateway.Candidate

	VoteStatus VoteStatus

	// VotingEnabled is set iff State is Ready, VoteStatus is NotVoted and
	// TakenAt is within Window.
	VotingEnabled bool

	// Notice is a message to be displayed to the user, if any.
	Notice string

	TakenAt time.Time
}

// Candidate looks up the roster entry by ID.
func (s Snapshot) Candidate(id uint64) (gateway.Candidate, bool) {
	return lookupCandidate(s.Roster, id)
}

func (s Snapshot) clone() Snapshot {
	s.Roster = slices.Clone(s.Roster)
	return s
}

// lookupCandidate searches the roster sorted by ID.
func lookupCandidate(roster []gateway.Candidate, id uint64) (gateway.Candidate, bool) {
	i, ok := slices.BinarySearchFunc(roster, id, func(c gateway.Candidate, id uint64) int {
		switch {
		case c.ID < id:
			return -1
		case c.ID > id:
			return 1
		default:
			return 0
		}
	})
	if !ok {
		return gateway.Candidate{}, false
	}
	return roster[i], true
}
