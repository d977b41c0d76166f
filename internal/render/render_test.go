package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/nspcc-dev/voting-client/gateway"
	"github.com/nspcc-dev/voting-client/session"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	require.Equal(t, "not set", Window(gateway.Window{}))

	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.Local)
	require.Equal(t, "Fri Mar 01 2024 - Sun Mar 03 2024", Window(gateway.Window{
		Start: start,
		End:   start.Add(48 * time.Hour),
	}))
}

func TestSnapshot(t *testing.T) {
	var buf bytes.Buffer

	s := session.Snapshot{
		Round:      2,
		State:      session.Ready,
		Account:    "NbUgTSFvPmsRxmGeWpuuGeJUoRoi6PErcM",
		VoteStatus: session.Unknown,
		Roster: []gateway.Candidate{
			{ID: 1, Name: "Alice", Affiliation: "Blue", VoteCount: 10},
			{ID: 2, Name: "Bob", Affiliation: "Green", VoteCount: 3},
		},
		Notice: session.NoticePending,
	}

	require.NoError(t, Snapshot(&buf, s))

	out := buf.String()
	require.Contains(t, out, "Your Account: NbUgTSFvPmsRxmGeWpuuGeJUoRoi6PErcM\n")
	require.Contains(t, out, "Voting period: not set\n")
	require.Contains(t, out, "voting enabled: no")
	require.Regexp(t, `1\s+Alice\s+Blue\s+10`, out)
	require.Regexp(t, `2\s+Bob\s+Green\s+3`, out)
	require.Contains(t, out, session.NoticePending)

	buf.Reset()
	s.Roster = nil
	s.Notice = ""
	require.NoError(t, Snapshot(&buf, s))
	require.Contains(t, buf.String(), "No candidates registered.")
}
