/*
Package session implements the Voting Session Controller.

Controller owns the local mirror of the ledger state (voting window, roster
with tallies and the vote status of the session account), decides whether
voting is allowed and sequences Gateway calls so that at most one vote per
session is attempted. Every change is published as an immutable Snapshot.

Controller never holds its lock across Gateway calls: reads run concurrently
and their results are applied atomically, writes are gated by the in-flight
flag.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/voting-client/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default timeouts of the Controller operations.
const (
	DefaultVoteTimeout = 2 * time.Minute
	DefaultSyncTimeout = 30 * time.Second
)

// NoticePending is the Snapshot.Notice of an unconfirmed vote.
const NoticePending = "vote pending confirmation, refresh to resolve"

// Opts groups Controller options.
type Opts struct {
	// Writes operation details into the log. Optional.
	Logger *zap.Logger

	// Ledger access (required).
	Gateway gateway.Gateway

	// Session account (required).
	Account util.Uint160

	// Current time source. Defaults to time.Now.
	Now func() time.Time

	// Bounds Gateway writes. Defaults to DefaultVoteTimeout.
	VoteTimeout time.Duration

	// Bounds each synchronization round. Defaults to DefaultSyncTimeout.
	SyncTimeout time.Duration
}

// Controller is the Voting Session Controller. It is safe for concurrent use.
type Controller struct {
	log         *zap.Logger
	gw          gateway.Gateway
	account     util.Uint160
	address     string
	now         func() time.Time
	voteTimeout time.Duration
	syncTimeout time.Duration

	mtx sync.Mutex

	// ledger mirror
	window gateway.Window
	roster []gateway.Candidate
	status VoteStatus

	// lastRound is the last started round, appliedRound is the last one
	// whose outcome was applied, dataRound is the last successful one.
	lastRound    uint64
	appliedRound uint64
	dataRound    uint64
	syncing      int
	initialized  bool
	failed       bool

	inFlight bool
	// rounds started before this one may have read the vote status while
	// the last submission was still unresolved.
	submitRound uint64

	notice string

	snap Snapshot
	subs map[<-chan Snapshot]chan Snapshot
}

// New constructs Controller. Call Synchronize to load the ledger state.
func New(opts Opts) *Controller {
	c := &Controller{
		log:         opts.Logger,
		gw:          opts.Gateway,
		account:     opts.Account,
		address:     address.Uint160ToString(opts.Account),
		now:         opts.Now,
		voteTimeout: opts.VoteTimeout,
		syncTimeout: opts.SyncTimeout,
		subs:        make(map[<-chan Snapshot]chan Snapshot),
	}

	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.voteTimeout <= 0 {
		c.voteTimeout = DefaultVoteTimeout
	}
	if c.syncTimeout <= 0 {
		c.syncTimeout = DefaultSyncTimeout
	}

	c.publish(c.now())

	return c
}

// state derives the lifecycle state. Must be called under the lock.
func (c *Controller) state() State {
	switch {
	case c.inFlight:
		return Submitting
	case c.syncing > 0:
		return Synchronizing
	case c.failed:
		return Errored
	case !c.initialized:
		return Uninitialized
	default:
		return Ready
	}
}

// publish makes a new Snapshot from the current state and delivers it to
// subscribers. Must be called under the lock.
func (c *Controller) publish(now time.Time) Snapshot {
	s := Snapshot{
		Round:      c.dataRound,
		State:      c.state(),
		Account:    c.address,
		Window:     c.window,
		Roster:     slices.Clone(c.roster),
		VoteStatus: c.status,
		Notice:     c.notice,
		TakenAt:    now,
	}

	s.VotingEnabled = s.State == Ready && s.VoteStatus == NotVoted && s.Window.Contains(now)

	c.snap = s

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.clone():
		default:
		}
	}

	return s.clone()
}

// Snapshot returns the latest published Snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.snap.clone()
}

// Subscribe returns a channel holding the latest Snapshot. Intermediate
// snapshots are dropped if the subscriber lags behind. The channel must be
// released with Unsubscribe.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.mtx.Lock()
	defer c.mtx.Unlock()

	ch <- c.snap.clone()
	c.subs[ch] = ch

	return ch
}

// Unsubscribe stops delivery to the channel returned by Subscribe and
// closes it.
func (c *Controller) Unsubscribe(sub <-chan Snapshot) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	ch, ok := c.subs[sub]
	if !ok {
		return
	}

	delete(c.subs, sub)
	close(ch)
}

// Refresh is an alias of Synchronize.
func (c *Controller) Refresh(ctx context.Context) (Snapshot, error) {
	return c.Synchronize(ctx)
}

type ledgerState struct {
	window gateway.Window
	roster []gateway.Candidate
	voted  bool
}

// Synchronize reads the voting window, the roster and the vote status of
// the session account concurrently and publishes them at once. If any read
// fails, the cached data is kept, the Controller goes Errored and the error
// is returned.
//
// Results of a round finished after a newer round has been applied are
// discarded.
func (c *Controller) Synchronize(ctx context.Context) (Snapshot, error) {
	c.mtx.Lock()
	c.lastRound++
	round := c.lastRound
	c.syncing++
	c.publish(c.now())
	c.mtx.Unlock()

	ls, err := c.readLedger(ctx)

	now := c.now()

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.syncing--

	if round < c.appliedRound {
		c.log.Debug("synchronization round outdated, discarding",
			zap.Uint64("round", round), zap.Uint64("applied", c.appliedRound), zap.Error(err))
		return c.publish(now), nil
	}

	c.appliedRound = round

	if err != nil {
		c.failed = true
		c.notice = "ledger synchronization failed: " + err.Error()
		c.log.Warn("ledger synchronization failed", zap.Uint64("round", round), zap.Error(err))
		return c.publish(now), fmt.Errorf("synchronize round %d: %w", round, err)
	}

	c.dataRound = round
	c.window = ls.window
	c.roster = ls.roster
	c.reconcile(round, ls.voted)
	c.initialized = true
	c.failed = false
	if !c.inFlight && c.status != Unknown {
		c.notice = ""
	}

	s := c.publish(now)

	c.log.Debug("ledger synchronized",
		zap.Uint64("round", round),
		zap.Int("candidates", len(s.Roster)),
		zap.Stringer("status", s.VoteStatus),
		zap.Bool("enabled", s.VotingEnabled))

	return s, nil
}

func (c *Controller) readLedger(ctx context.Context) (ledgerState, error) {
	var ls ledgerState

	ctx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		ls.window, err = c.gw.ReadWindow(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		ls.roster, err = c.gw.ReadRoster(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		ls.voted, err = c.gw.ReadVoteStatus(gCtx, c.account)
		return err
	})

	return ls, g.Wait()
}

// reconcile merges the ledger vote status read in the given round into the
// local one. Must be called under the lock.
func (c *Controller) reconcile(round uint64, voted bool) {
	switch {
	case voted:
		c.status = Voted
	case c.status == Voted, c.inFlight:
	case c.status == Unknown:
		if round > c.submitRound {
			c.status = NotVoted
			c.notice = ""
		}
	default:
		c.status = NotVoted
	}
}

// CastVote submits the vote of the session account for the candidate and
// waits for the outcome. CastVote is not idempotent: while a vote is in
// flight, subsequent calls fail with AlreadyPending.
//
// Returned errors are of *VoteError type. On Indeterminate outcome the vote
// status stays Unknown until the next Synchronize.
func (c *Controller) CastVote(ctx context.Context, candidateID uint64) error {
	c.mtx.Lock()

	if _, ok := lookupCandidate(c.roster, candidateID); !ok {
		c.mtx.Unlock()
		return &VoteError{Kind: UnknownCandidate, Err: fmt.Errorf("no candidate #%d in the roster", candidateID)}
	}

	if c.inFlight {
		c.mtx.Unlock()
		return &VoteError{Kind: AlreadyPending}
	}

	now := c.now()

	if err := c.checkEligible(now); err != nil {
		c.mtx.Unlock()
		return &VoteError{Kind: NotEligible, Err: err}
	}

	c.status = Unknown
	c.inFlight = true
	c.notice = ""
	c.publish(now)
	c.mtx.Unlock()

	l := c.log.With(zap.Uint64("candidate", candidateID))
	l.Info("submitting vote...")

	wCtx, cancel := context.WithTimeout(ctx, c.voteTimeout)
	conf, err := c.gw.SubmitVote(wCtx, c.account, candidateID)
	cancel()

	switch {
	case err == nil:
		c.mtx.Lock()
		c.finishSubmit()
		c.status = Voted
		c.publish(c.now())
		c.mtx.Unlock()

		l.Info("vote confirmed", zap.Stringer("tx", conf.TxHash))

		if _, err := c.Synchronize(ctx); err != nil {
			l.Warn("failed to synchronize after the vote", zap.Error(err))
		}

		return nil
	case errors.Is(err, gateway.ErrRejected):
		var reason string
		var gErr *gateway.Error
		if errors.As(err, &gErr) {
			reason = gErr.Reason
		}

		l.Info("vote rejected", zap.String("reason", reason), zap.Error(err))

		rCtx, cancel := context.WithTimeout(ctx, c.syncTimeout)
		w, wErr := c.gw.ReadWindow(rCtx)
		cancel()

		c.mtx.Lock()
		c.finishSubmit()
		if c.status != Voted {
			c.status = NotVoted
		}
		if wErr != nil {
			c.failed = true
			c.notice = "ledger synchronization failed: " + wErr.Error()
			l.Warn("failed to re-read voting window", zap.Error(wErr))
		} else {
			c.window = w
		}
		c.publish(c.now())
		c.mtx.Unlock()

		return &VoteError{Kind: Rejected, Reason: reason, Err: err}
	default:
		c.mtx.Lock()
		c.finishSubmit()
		if c.status != Voted {
			c.notice = NoticePending
		}
		c.publish(c.now())
		c.mtx.Unlock()

		l.Warn("vote outcome is unknown", zap.Error(err))

		return &VoteError{Kind: Indeterminate, Err: err}
	}
}

// checkEligible returns an error if voting is not allowed at the given time.
// Must be called under the lock.
func (c *Controller) checkEligible(now time.Time) error {
	switch {
	case !c.initialized:
		return errors.New("session is not synchronized")
	case c.failed:
		return errors.New("last synchronization failed")
	case c.status == Voted:
		return errors.New("account has already voted")
	case c.status == Unknown:
		return errors.New("previous vote is not confirmed, refresh required")
	case !c.window.IsSet():
		return errors.New("voting dates are not set")
	case !c.window.Contains(now):
		return fmt.Errorf("voting is open from %s to %s", c.window.Start, c.window.End)
	}
	return nil
}

// finishSubmit must be called under the lock.
func (c *Controller) finishSubmit() {
	c.inFlight = false
	c.submitRound = c.lastRound
}

// RegisterCandidate adds a candidate to the ledger roster and synchronizes
// the session on success.
func (c *Controller) RegisterCandidate(ctx context.Context, name, affiliation string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	wCtx, cancel := context.WithTimeout(ctx, c.voteTimeout)
	conf, err := c.gw.RegisterCandidate(wCtx, name, affiliation)
	cancel()
	if err != nil {
		return err
	}

	c.log.Info("candidate registered",
		zap.String("name", name), zap.String("affiliation", affiliation), zap.Stringer("tx", conf.TxHash))

	c.resync(ctx)

	return nil
}

// SetWindow sets the voting window on the ledger and synchronizes the
// session on success.
func (c *Controller) SetWindow(ctx context.Context, start, end time.Time) error {
	w := gateway.Window{Start: start, End: end}

	if err := w.Validate(); err != nil {
		return err
	}

	wCtx, cancel := context.WithTimeout(ctx, c.voteTimeout)
	conf, err := c.gw.SetWindow(wCtx, w)
	cancel()
	if err != nil {
		return err
	}

	c.log.Info("voting window set",
		zap.Time("start", start), zap.Time("end", end), zap.Stringer("tx", conf.TxHash))

	c.resync(ctx)

	return nil
}

func (c *Controller) resync(ctx context.Context) {
	if _, err := c.Synchronize(ctx); err != nil {
		c.log.Warn("failed to synchronize after the ledger update", zap.Error(err))
	}
}
