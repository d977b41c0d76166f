package tally

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nspcc-dev/voting-client/session"
)

// ErrUnconfirmed is returned when exporting a Snapshot carrying no ledger
// data.
var ErrUnconfirmed = errors.New("snapshot has no confirmed ledger data")

// Creator exports voting session snapshots. Output file format:
//
//	'<label>-<round>-window.json': JSON object with session header
//	'<label>-<round>-tally.csv': CSV of candidate tallies
//
// Tally CSV are 'id,name,affiliation,votes' in ascending ID order.
//
// Use IterateExports to access existing exports.
type Creator struct {
	exportStreams

	header Header

	tallyCSV *csv.Writer
}

// NewCreator returns Creator which exports snapshots into given directory.
// The export is identified by specified ID. Resulting Creator should be
// closed when finished working with it.
//
// NewCreator fails if export with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initExportStreams(&res.exportStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.tallyCSV = csv.NewWriter(res.exportStreams.tally)

	return &res, nil
}

// Add writes candidates of the given Snapshot into the resulting export and
// remembers its header. After the snapshot is added, it should be flushed
// via Flush method.
func (x *Creator) Add(s session.Snapshot) error {
	x.header = Header{
		Account:    s.Account,
		Round:      s.Round,
		State:      s.State.String(),
		VoteStatus: s.VoteStatus.String(),
		TakenAt:    s.TakenAt.UTC(),
	}
	x.header.Window.Start = s.Window.Start.UTC()
	x.header.Window.End = s.Window.End.UTC()

	for i := range s.Roster {
		err := x.tallyCSV.Write([]string{
			strconv.FormatUint(s.Roster[i].ID, 10),
			s.Roster[i].Name,
			s.Roster[i].Affiliation,
			strconv.FormatUint(s.Roster[i].VoteCount, 10),
		})
		if err != nil {
			return fmt.Errorf("write candidate #%d as CSV data: %w", s.Roster[i].ID, err)
		}
	}

	return nil
}

// Flush flushes accumulated export to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.exportStreams.header)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.header)
	if err != nil {
		return fmt.Errorf("encode session header to JSON: %w", err)
	}

	x.tallyCSV.Flush()

	err = x.tallyCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() {
	x.close()
}

// Export writes the Snapshot into dir as a single export labeled with the
// given label. Snapshots without ledger data can't be exported.
func Export(dir, label string, s session.Snapshot) (ID, error) {
	if s.Round == 0 {
		return ID{}, ErrUnconfirmed
	}

	id := ID{Label: label, Round: s.Round}

	c, err := NewCreator(dir, id)
	if err != nil {
		return id, fmt.Errorf("init export '%s': %w", id, err)
	}
	defer c.Close()

	err = c.Add(s)
	if err != nil {
		return id, err
	}

	return id, c.Flush()
}
