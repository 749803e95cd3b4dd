package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/franz/audioset-prep/internal/acquire"
	"github.com/franz/audioset-prep/internal/util"
)

// Table is the compiled metadata indexed by label
type Table struct {
	byLabel map[string][]acquire.Candidate
	rows    int
	skipped int
}

// LoadTable reads a compiled table. Rows whose window is not a whole number
// of seconds, or is negative or empty, are counted and left out.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: compiled metadata %s (run `asp compile`)", util.ErrMissingInput, path)
		}
		return nil, err
	}
	defer f.Close()

	t, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrCorrupt, path, err)
	}
	if t.skipped > 0 {
		util.WarnLog("Skipped %d metadata rows with unusable windows", t.skipped)
	}
	return t, nil
}

func readTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{byLabel: map[string][]acquire.Candidate{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 3 || strings.TrimSpace(header[0]) != TableColumns[0] {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	t := &Table{byLabel: make(map[string][]acquire.Candidate)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 4 {
			t.skipped++
			continue
		}

		start, okStart := wholeSeconds(row[1])
		end, okEnd := wholeSeconds(row[2])
		if !okStart || !okEnd || start < 0 || end <= start {
			t.skipped++
			continue
		}

		c := acquire.Candidate{SourceID: strings.TrimSpace(row[0]), ClipStart: start, ClipEnd: end}
		for _, label := range row[3:] {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			t.byLabel[label] = append(t.byLabel[label], c)
		}
		t.rows++
	}
	return t, nil
}

// wholeSeconds parses "30", "30.0" or "30.000" but rejects "30.5"
func wholeSeconds(s string) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// Candidates returns every row carrying classID, in file order. The slice
// is a copy; callers may reorder it.
func (t *Table) Candidates(classID string) []acquire.Candidate {
	src := t.byLabel[classID]
	out := make([]acquire.Candidate, len(src))
	copy(out, src)
	return out
}

// Rows is the number of usable rows
func (t *Table) Rows() int { return t.rows }

// Skipped is the number of rows left out
func (t *Table) Skipped() int { return t.skipped }

// Labels is the number of distinct labels seen
func (t *Table) Labels() int { return len(t.byLabel) }
