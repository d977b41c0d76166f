package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/nspcc-dev/voting-client/internal/render"
	"github.com/nspcc-dev/voting-client/session"
	"github.com/nspcc-dev/voting-client/tally"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const defaultWatchInterval = 15 * time.Second

func status(_ context.Context, _ *cli.Context, e *env) error {
	return render.Snapshot(os.Stdout, e.ctrl.Snapshot())
}

func vote(ctx context.Context, c *cli.Context, e *env) error {
	if !c.IsSet("candidate") {
		return errors.New("missing candidate ID")
	}

	id := c.Uint64("candidate")

	err := e.ctrl.CastVote(ctx, id)

	if rErr := render.Snapshot(os.Stdout, e.ctrl.Snapshot()); rErr != nil {
		e.log.Warn("failed to render session state", zap.Error(rErr))
	}

	if err != nil {
		return err
	}

	fmt.Printf("\nVote for candidate #%d is confirmed.\n", id)

	return nil
}

func addCandidate(ctx context.Context, c *cli.Context, e *env) error {
	err := e.ctrl.RegisterCandidate(ctx, c.String("name"), c.String("party"))
	if err != nil {
		return fmt.Errorf("register candidate: %w", err)
	}

	return render.Snapshot(os.Stdout, e.ctrl.Snapshot())
}

func setDates(ctx context.Context, c *cli.Context, e *env) error {
	start, err := parseDate(c.String("start"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end, err := parseDate(c.String("end"))
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	err = e.ctrl.SetWindow(ctx, start, end)
	if err != nil {
		return fmt.Errorf("set voting dates: %w", err)
	}

	fmt.Printf("Voting period set: %s\n", render.Window(gateway.Window{Start: start, End: end}))

	return nil
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates in the local
// time zone.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}

	return time.ParseInLocation(time.DateOnly, s, time.Local)
}

func watch(ctx context.Context, c *cli.Context, e *env) error {
	interval := c.Duration("interval")
	if interval <= 0 {
		return fmt.Errorf("non-positive interval %s", interval)
	}

	sub := e.ctrl.Subscribe()
	defer e.ctrl.Unsubscribe(sub)

	t := time.NewTicker(interval)
	defer t.Stop()

	var lastRound uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-sub:
			if s.State == session.Synchronizing || s.Round == lastRound && s.Notice == "" {
				continue
			}

			lastRound = s.Round

			fmt.Println("----")
			err := render.Snapshot(os.Stdout, s)
			if err != nil {
				return err
			}
		case <-t.C:
			_, err := e.ctrl.Refresh(ctx)
			if err != nil {
				e.log.Info("refresh failed", zap.Error(err))
			}
		}
	}
}

func exportTallies(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		return export(ctx, c)
	}
}

func export(ctx context.Context, c *cli.Context) error {
	dir := c.String("dir")

	if c.Bool("list") {
		return tally.IterateExports(dir, func(id tally.ID, r *tally.Reader) {
			h := r.Header()

			var votes uint64
			r.IterateCandidates(func(c gateway.Candidate) { votes += c.VoteCount })

			fmt.Printf("%s\t%s\t%s\t%d votes\n", id, h.TakenAt.Local().Format(time.DateTime),
				render.Window(gateway.Window{Start: h.Window.Start, End: h.Window.End}), votes)
		})
	}

	label := c.String("label")
	if label == "" {
		return errors.New("missing export label")
	}

	return withSession(ctx, func(_ context.Context, _ *cli.Context, e *env) error {
		s := e.ctrl.Snapshot()
		if s.State == session.Errored {
			return fmt.Errorf("ledger is not synchronized: %s", s.Notice)
		}

		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}

		id, err := tally.Export(dir, label, s)
		if err != nil {
			return fmt.Errorf("export tallies: %w", err)
		}

		fmt.Printf("Tallies of round %d are exported to '%s'\n", s.Round, filepath.Join(dir, id.String()+"-*"))

		return nil
	})(c)
}
