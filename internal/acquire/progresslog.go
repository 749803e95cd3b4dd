package acquire

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/franz/audioset-prep/internal/util"
)

// LogColumns is the header written to every progress log
var LogColumns = []string{
	"source_id",
	"class_id",
	"class_name",
	"output_file_name",
	"original_file_name",
	"sample_rate",
}

// Headers written by the older pandas-based downloader, mapped to LogColumns
// names. An unnamed leading index column is ignored.
var logAliases = map[string]string{
	"yid":        "source_id",
	"mid":        "class_id",
	"class name": "class_name",
	"file name":  "output_file_name",
	"og file":    "original_file_name",
	"sr":         "sample_rate",
}

// CSVLog is a ProgressLog stored as a CSV file. Each Save rewrites the
// whole file atomically, so a crash leaves either the old or the new log.
type CSVLog struct {
	path string
}

// NewCSVLog returns a log backed by path
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// ClassLogPath returns <dir>/<folder>.csv, the log location for a class folder
func ClassLogPath(dir string) string {
	return filepath.Join(dir, filepath.Base(dir)+".csv")
}

// Path returns the file backing the log
func (l *CSVLog) Path() string {
	return l.path
}

// Load reads the log. A missing file is an empty log.
func (l *CSVLog) Load() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open progress log: %w", err)
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%w: progress log %s: %v", util.ErrCorrupt, l.path, err)
	}
	return records, nil
}

// Save replaces the log contents with records
func (l *CSVLog) Save(records []Record) error {
	var buf bytes.Buffer
	if err := writeRecords(&buf, records); err != nil {
		return fmt.Errorf("encode progress log: %w", err)
	}
	if err := util.WriteFileAtomic(l.path, buf.Bytes()); err != nil {
		return fmt.Errorf("persist progress log: %w", err)
	}
	return nil
}

func readRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if alias, ok := logAliases[key]; ok {
			key = alias
		}
		col[key] = i
	}
	if _, ok := col["source_id"]; !ok {
		return nil, errors.New("missing source_id column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := Record{
			SourceID:         field(row, "source_id"),
			ClassID:          field(row, "class_id"),
			ClassName:        field(row, "class_name"),
			OutputFileName:   field(row, "output_file_name"),
			OriginalFileName: field(row, "original_file_name"),
		}
		if rec.SourceID == "" {
			continue
		}
		if sr := field(row, "sample_rate"); sr != "" {
			v, err := strconv.ParseFloat(sr, 64)
			if err != nil {
				return nil, fmt.Errorf("row %s: bad sample_rate %q", rec.SourceID, sr)
			}
			rec.SampleRate = int(v)
		}
		records = append(records, rec)
	}
	return records, nil
}

func writeRecords(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LogColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.SourceID,
			r.ClassID,
			r.ClassName,
			r.OutputFileName,
			r.OriginalFileName,
			strconv.Itoa(r.SampleRate),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
