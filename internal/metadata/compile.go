package metadata

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/util"
)

// DefaultSources are the AudioSet segment lists, in the order they are
// concatenated into the compiled table.
var DefaultSources = []string{
	"balanced_train_segments.csv",
	"unbalanced_train_segments_0.csv",
	"unbalanced_train_segments_1.csv",
	"unbalanced_train_segments_2.csv",
	"eval_segments.csv",
}

// TableColumns is the fixed part of the compiled table header. Labels follow
// in as many extra columns as a row needs.
var TableColumns = []string{"source_id", "clip_start", "clip_end", "labels"}

// CompileOptions configures Compile
type CompileOptions struct {
	MetaDir string
	Sources []string // relative to MetaDir; nil = DefaultSources
	Dest    string
	Force   bool
	Events  *report.EventLogger
}

// CompileResult summarizes a compile run
type CompileResult struct {
	Dest    string
	Rows    int
	Skipped int  // malformed rows
	Reused  bool // table already existed and was kept
}

// Compile concatenates the segment lists into one table at opts.Dest.
// An existing table is kept unless opts.Force is set.
func Compile(opts CompileOptions) (*CompileResult, error) {
	if opts.Dest == "" {
		return nil, fmt.Errorf("%w: no destination for compiled table", util.ErrInvalidConfig)
	}
	if !opts.Force && util.FileExists(opts.Dest) {
		util.InfoLog("Compiled metadata already present at %s, skipping", opts.Dest)
		return &CompileResult{Dest: opts.Dest, Reused: true}, nil
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}

	paths := make([]string, len(sources))
	for i, name := range sources {
		paths[i] = name
		if !filepath.IsAbs(name) {
			paths[i] = filepath.Join(opts.MetaDir, name)
		}
		if err := util.RequireFile(paths[i], "segment list"); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	if err := out.Write(TableColumns); err != nil {
		return nil, err
	}

	result := &CompileResult{Dest: opts.Dest}
	for _, path := range paths {
		rows, skipped, err := appendSegments(out, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		util.DebugLog("%s: %d rows, %d skipped", filepath.Base(path), rows, skipped)
		result.Rows += rows
		result.Skipped += skipped
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.Dest); dir != "." {
		if _, err := util.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	if err := util.WriteFileAtomic(opts.Dest, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write compiled table: %w", err)
	}

	opts.Events.LogCompile(opts.Dest, result.Rows, result.Skipped, sources)
	return result, nil
}

func appendSegments(out *csv.Writer, path string) (rows, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	return copySegments(out, f)
}

// copySegments reads an AudioSet segment list. Lines look like
//
//	--PJHxphWEs, 30.000, 40.000, "/m/09x0r,/t/dd00088"
//
// so the quoted label list arrives split across trailing fields.
func copySegments(out *csv.Writer, r io.Reader) (rows, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return rows, skipped, err
		}

		row, ok := segmentRow(fields)
		if !ok {
			skipped++
			continue
		}
		if err := out.Write(row); err != nil {
			return rows, skipped, err
		}
		rows++
	}
	return rows, skipped, nil
}

func segmentRow(fields []string) ([]string, bool) {
	if len(fields) < 4 {
		return nil, false
	}
	id := strings.TrimSpace(fields[0])
	if id == "" {
		return nil, false
	}

	row := []string{id, strings.TrimSpace(fields[1]), strings.TrimSpace(fields[2])}
	for _, field := range fields[3:] {
		for _, label := range strings.Split(field, ",") {
			label = strings.Trim(label, ` "`)
			if label != "" {
				row = append(row, label)
			}
		}
	}
	if len(row) == 3 {
		return nil, false
	}
	return row, true
}
