package tally

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ID is a unique identifier of the export.
type ID struct {
	// Label of the export source (e.g. testnet, mainnet).
	Label string
	// Synchronization round which produced the exported data.
	Round uint64
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(x.Round, 10)
}

// decodes ID fields from the hyphen-separated string. Label may contain
// separators itself, the round is the second to last item.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 3 {
		return fmt.Errorf("expected '%s'-separated string with at least 3 items", sep)
	}

	n, err := strconv.ParseUint(ss[len(ss)-2], 10, 64)
	if err != nil {
		return fmt.Errorf("decode round number from '%s': %w", ss[len(ss)-2], err)
	}

	x.Label = strings.Join(ss[:len(ss)-2], sep)
	x.Round = n

	return nil
}

// Header is a JSON-encoded information about the exported session.
type Header struct {
	Account    string    `json:"account"`
	Round      uint64    `json:"round"`
	State      string    `json:"state"`
	VoteStatus string    `json:"vote_status"`
	TakenAt    time.Time `json:"taken_at"`
	Window     struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"window"`
}

// exportStreams groups data streams for session header and tallies.
type exportStreams struct {
	header, tally io.ReadWriteCloser
}

// close closes all streams.
func (x *exportStreams) close() {
	_ = x.tally.Close()
	_ = x.header.Close()
}

const (
	// word separator used in export file naming
	sep = "-"
	// suffix of file with session header
	headerFileSuffix = "window.json"
	// suffix of file with candidate tallies
	tallyFileSuffix = "tally.csv"
)

// initExportStreams opens data streams for the export files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initExportStreams(d *exportStreams, dir string, id ID, read bool) error {
	var err error

	pathTally := filepath.Join(dir, strings.Join([]string{id.String(), tallyFileSuffix}, sep))
	pathHeader := filepath.Join(dir, strings.Join([]string{id.String(), headerFileSuffix}, sep))

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		for _, p := range []string{pathTally, pathHeader} {
			if err = checkFileNotExists(p); err != nil {
				return err
			}
		}

		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.tally, err = os.OpenFile(pathTally, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with tallies: %w", err)
	}

	d.header, err = os.OpenFile(pathHeader, flag, perm)
	if err != nil {
		_ = d.tally.Close()
		return fmt.Errorf("open file with session header: %w", err)
	}

	return nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
