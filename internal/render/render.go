// Package render prints voting session snapshots as text.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/nspcc-dev/voting-client/session"
)

// DateLayout is the layout of voting window dates.
const DateLayout = "Mon Jan 02 2006"

// Window formats the voting window.
func Window(w gateway.Window) string {
	if !w.IsSet() {
		return "not set"
	}
	return w.Start.Local().Format(DateLayout) + " - " + w.End.Local().Format(DateLayout)
}

// Snapshot writes s to w in a human-readable form.
func Snapshot(w io.Writer, s session.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Your Account: %s\n", s.Account)
	fmt.Fprintf(tw, "Voting period: %s\n", Window(s.Window))
	fmt.Fprintf(tw, "Session: %s (round %d, %s)\n", s.State, s.Round, s.TakenAt.Local().Format(time.DateTime))

	enabled := "no"
	if s.VotingEnabled {
		enabled = "yes"
	}
	fmt.Fprintf(tw, "Vote: %s, voting enabled: %s\n", s.VoteStatus, enabled)

	if len(s.Roster) == 0 {
		fmt.Fprintln(tw, "\nNo candidates registered.")
	} else {
		fmt.Fprintln(tw, "\n#\tName\tParty\tVotes")
		for _, c := range s.Roster {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.ID, c.Name, c.Affiliation, c.VoteCount)
		}
	}

	if s.Notice != "" {
		fmt.Fprintf(tw, "\n! %s\n", s.Notice)
	}

	return tw.Flush()
}
