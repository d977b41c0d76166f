package tally

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nspcc-dev/voting-client/gateway"
)

// IterateExports iterates over all exports made by the Creator in the
// specified directory, and passes ID and Reader of each export into f.
func IterateExports(dir string, f func(ID, *Reader)) error {
	var id ID
	var r Reader
	var streams exportStreams

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}

		if e != nil {
			return e
		}

		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()

		if !strings.HasSuffix(name, sep+headerFileSuffix) {
			return nil
		}

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode export ID from file name '%s': %w", name, err)
		}

		err = initExportStreams(&streams, dir, id, true)
		if err != nil {
			return fmt.Errorf("init export streams ('%s'): %w", name, err)
		}

		err = r.fromExportStreams(streams.header, streams.tally)

		streams.close()

		if err != nil {
			return fmt.Errorf("init export reader ('%s'): %w", name, err)
		}

		f(id, &r)

		return nil
	})
}

// Reader reads the superior export.
type Reader struct {
	header Header
	roster []gateway.Candidate
}

func (x *Reader) fromExportStreams(rHeader, rTally io.Reader) error {
	x.header = Header{}

	err := json.NewDecoder(rHeader).Decode(&x.header)
	if err != nil {
		return fmt.Errorf("decode session header from JSON: %w", err)
	}

	var rec []string
	var c gateway.Candidate

	_csv := csv.NewReader(rTally)
	_csv.FieldsPerRecord = 4
	_csv.ReuseRecord = true

	x.roster = x.roster[:0]

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		c.ID, err = strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("decode candidate ID: %w", err)
		}

		c.VoteCount, err = strconv.ParseUint(rec[3], 10, 64)
		if err != nil {
			return fmt.Errorf("decode vote count of candidate #%d: %w", c.ID, err)
		}

		c.Name, c.Affiliation = rec[1], rec[2]

		x.roster = append(x.roster, c)
	}
}

// Header returns exported session header.
func (x *Reader) Header() Header {
	return x.header
}

// IterateCandidates iterates over all candidates from the superior export in
// ascending ID order and passes them into f.
func (x *Reader) IterateCandidates(f func(gateway.Candidate)) {
	for i := range x.roster {
		f(x.roster[i])
	}
}
