package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/voting-client/rpc/voting"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRosterConcurrency is the default number of candidates fetched
// simultaneously by Ledger.ReadRoster.
const DefaultRosterConcurrency = 4

// MaxRosterSize limits the number of candidates reported by the ledger.
// Larger counts are treated as malformed.
const MaxRosterSize = 1 << 16

// Actor groups functions needed to read from the Voting contract, send
// transactions to it and await their execution.
type Actor interface {
	voting.Actor

	// WaitAny waits for any of the given transactions to be persisted until
	// ValidUntilBlock vub passes or ctx is done.
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// LedgerPrm groups parameters of the Ledger.
type LedgerPrm struct {
	// Writes operation details into the log. Optional.
	Logger *zap.Logger

	// Transaction sender bound to the session account (required).
	Actor Actor

	// Address of the Voting contract (required).
	Contract util.Uint160

	// Limits parallel getCandidate calls. Defaults to
	// DefaultRosterConcurrency.
	RosterConcurrency int
}

// Ledger is the Gateway over Neo RPC.
type Ledger struct {
	logger      *zap.Logger
	actor       Actor
	reader      *voting.ContractReader
	contract    *voting.Contract
	concurrency int
}

var _ Gateway = (*Ledger)(nil)

// NewLedger constructs Ledger from the given parameters.
func NewLedger(prm LedgerPrm) *Ledger {
	l := &Ledger{
		logger:      prm.Logger,
		actor:       prm.Actor,
		concurrency: prm.RosterConcurrency,
	}

	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	if l.concurrency <= 0 {
		l.concurrency = DefaultRosterConcurrency
	}

	l.reader = voting.NewReader(classifyingInvoker{prm.Actor}, prm.Contract)
	l.contract = voting.New(prm.Actor, prm.Contract)

	return l
}

// classifyingInvoker marks transport and VM failures so that decoding errors
// of the contract binding can be told apart from them.
type classifyingInvoker struct {
	voting.Invoker
}

func (x classifyingInvoker) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	res, err := x.Invoker.Call(contract, operation, params...)
	if err != nil {
		return nil, classify(err)
	}

	if res.State != vmstate.Halt.String() {
		return nil, rejected(res.FaultException, fmt.Errorf("'%s' invocation finished with %s state", operation, res.State))
	}

	return res, nil
}

// call runs f asynchronously and returns its result or ctx error, whichever
// comes first. f keeps running in the background after ctx is done.
func call[T any](ctx context.Context, f func() (T, error)) (T, error) {
	type res struct {
		v   T
		err error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	ch := make(chan res, 1)

	go func() {
		v, err := f()
		ch <- res{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// read classifies errors of the read operations: everything not recognized
// by the invoker is a decoding failure.
func read[T any](ctx context.Context, f func() (T, error)) (T, error) {
	v, err := call(ctx, f)
	if err != nil {
		var gErr *Error
		if errors.As(err, &gErr) {
			return v, err
		}
		if ctx.Err() != nil {
			return v, classify(err)
		}
		return v, malformed(err)
	}
	return v, nil
}

// ReadWindow implements Gateway.
func (l *Ledger) ReadWindow(ctx context.Context) (Window, error) {
	dates, err := read(ctx, l.reader.GetDates)
	if err != nil {
		return Window{}, fmt.Errorf("read voting dates: %w", err)
	}

	w, err := windowFromDates(dates)
	if err != nil {
		return Window{}, fmt.Errorf("read voting dates: %w", malformed(err))
	}

	return w, nil
}

func windowFromDates(d *voting.Dates) (Window, error) {
	if d.Start.Sign() == 0 && d.End.Sign() == 0 {
		return Window{}, nil
	}

	if !d.Start.IsInt64() || !d.End.IsInt64() || d.Start.Sign() < 0 {
		return Window{}, fmt.Errorf("dates out of range: [%s, %s)", d.Start, d.End)
	}

	w := Window{
		Start: time.Unix(d.Start.Int64(), 0),
		End:   time.Unix(d.End.Int64(), 0),
	}

	return w, w.Validate()
}

// ReadRoster implements Gateway. The roster is read as getCountCandidates
// followed by getCandidate for each ID from 1 to the count.
func (l *Ledger) ReadRoster(ctx context.Context) ([]Candidate, error) {
	count, err := read(ctx, l.reader.GetCountCandidates)
	if err != nil {
		return nil, fmt.Errorf("read number of candidates: %w", err)
	}

	if count.Sign() < 0 || !count.IsInt64() || count.Int64() > MaxRosterSize {
		return nil, fmt.Errorf("read number of candidates: %w", malformed(fmt.Errorf("invalid count %s", count)))
	}

	roster := make([]Candidate, count.Int64())

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i := range roster {
		id := uint64(i + 1)
		g.Go(func() error {
			c, err := read(gCtx, func() (*voting.Candidate, error) {
				return l.reader.GetCandidate(new(big.Int).SetUint64(id))
			})
			if err != nil {
				return fmt.Errorf("read candidate #%d: %w", id, err)
			}

			roster[id-1], err = candidateFromContract(id, c)
			if err != nil {
				return fmt.Errorf("read candidate #%d: %w", id, malformed(err))
			}

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return roster, nil
}

func candidateFromContract(id uint64, c *voting.Candidate) (Candidate, error) {
	if !c.ID.IsUint64() || c.ID.Uint64() != id {
		return Candidate{}, fmt.Errorf("unexpected candidate ID %s", c.ID)
	}

	if !c.VoteCount.IsUint64() {
		return Candidate{}, fmt.Errorf("invalid vote count %s", c.VoteCount)
	}

	return Candidate{
		ID:          id,
		Name:        c.Name,
		Affiliation: c.Party,
		VoteCount:   c.VoteCount.Uint64(),
	}, nil
}

// ReadVoteStatus implements Gateway.
func (l *Ledger) ReadVoteStatus(ctx context.Context, account util.Uint160) (bool, error) {
	voted, err := read(ctx, func() (bool, error) {
		return l.reader.CheckVote(account)
	})
	if err != nil {
		return false, fmt.Errorf("check vote status: %w", err)
	}

	return voted, nil
}

// SubmitVote implements Gateway.
func (l *Ledger) SubmitVote(ctx context.Context, account util.Uint160, candidateID uint64) (Confirmation, error) {
	conf, err := l.send(ctx, "vote", func() (util.Uint256, uint32, error) {
		return l.contract.Vote(account, new(big.Int).SetUint64(candidateID))
	})
	if err != nil {
		return conf, fmt.Errorf("vote for candidate #%d: %w", candidateID, err)
	}

	return conf, nil
}

// RegisterCandidate implements Gateway.
func (l *Ledger) RegisterCandidate(ctx context.Context, name, affiliation string) (Confirmation, error) {
	conf, err := l.send(ctx, "addCandidate", func() (util.Uint256, uint32, error) {
		return l.contract.AddCandidate(name, affiliation)
	})
	if err != nil {
		return conf, fmt.Errorf("add candidate '%s': %w", name, err)
	}

	return conf, nil
}

// SetWindow implements Gateway.
func (l *Ledger) SetWindow(ctx context.Context, w Window) (Confirmation, error) {
	err := w.Validate()
	if err != nil {
		return Confirmation{}, err
	}

	conf, err := l.send(ctx, "setDates", func() (util.Uint256, uint32, error) {
		return l.contract.SetDates(big.NewInt(w.Start.Unix()), big.NewInt(w.End.Unix()))
	})
	if err != nil {
		return conf, fmt.Errorf("set voting dates: %w", err)
	}

	return conf, nil
}

type sent struct {
	hash util.Uint256
	vub  uint32
}

// send sends the transaction produced by f and waits for its execution.
func (l *Ledger) send(ctx context.Context, method string, f func() (util.Uint256, uint32, error)) (Confirmation, error) {
	tx, err := call(ctx, func() (sent, error) {
		h, vub, err := f()
		return sent{h, vub}, err
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("send transaction: %w", classify(err))
	}

	l.logger.Info("transaction sent, waiting for execution",
		zap.String("method", method), zap.Stringer("tx", tx.hash), zap.Uint32("vub", tx.vub))

	res, err := l.actor.WaitAny(ctx, tx.vub, tx.hash)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return Confirmation{}, fmt.Errorf("wait for transaction %s: %w", tx.hash.StringLE(), classify(err))
	}

	conf := Confirmation{
		TxHash:      tx.hash,
		VUB:         tx.vub,
		GasConsumed: res.GasConsumed,
	}

	if res.VMState != vmstate.Halt {
		return conf, fmt.Errorf("transaction %s: %w", tx.hash.StringLE(),
			rejected(res.FaultException, fmt.Errorf("execution finished with %s state", res.VMState)))
	}

	l.logger.Info("transaction executed",
		zap.String("method", method), zap.Stringer("tx", tx.hash), zap.Int64("gas", res.GasConsumed))

	return conf, nil
}
