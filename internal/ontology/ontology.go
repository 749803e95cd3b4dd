package ontology

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/franz/audioset-prep/internal/util"
)

// Node is one entry of the AudioSet ontology.json
type Node struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	ChildIDs     []string `json:"child_ids"`
	Restrictions []string `json:"restrictions"`
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.ChildIDs) == 0
}

// IsBlacklisted reports whether AudioSet marks the class as unusable
func (n *Node) IsBlacklisted() bool {
	for _, r := range n.Restrictions {
		if r == "blacklist" {
			return true
		}
	}
	return false
}

// Quality is the rating estimate for one label from qa_true_counts.csv
type Quality struct {
	Rated int
	True  int
}

// Rate is the fraction of rated examples judged correct. Unrated labels
// have rate 0.
func (q Quality) Rate() float64 {
	if q.Rated <= 0 {
		return 0
	}
	return float64(q.True) / float64(q.Rated)
}

// LoadOntology reads ontology.json, keeping file order
func LoadOntology(path string) ([]Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, missing(path, "ontology", err)
	}
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("%w: ontology %s: %v", util.ErrCorrupt, path, err)
	}
	return nodes, nil
}

// LoadQuality reads qa_true_counts.csv (label_id,num_rated,num_true)
func LoadQuality(path string) (map[string]Quality, error) {
	rows, err := readCSV(path, "quality estimates", "label_id", "num_rated", "num_true")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Quality, len(rows))
	for _, row := range rows {
		rated, err1 := strconv.Atoi(row[1])
		trueCount, err2 := strconv.Atoi(row[2])
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%w: quality row %s: %v", util.ErrCorrupt, row[0], err)
		}
		out[row[0]] = Quality{Rated: rated, True: trueCount}
	}
	return out, nil
}

// LoadLabels reads class_labels_indices.csv into a mid -> display name map
func LoadLabels(path string) (map[string]string, error) {
	rows, err := readCSV(path, "class labels", "mid", "display_name")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row[0]] = row[1]
	}
	return out, nil
}

// readCSV returns the named columns of every data row, in the order asked for
func readCSV(path, what string, columns ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, missing(path, what, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: no header", util.ErrCorrupt, what, path)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	cols := make([]int, len(columns))
	for i, name := range columns {
		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s %s: missing column %q", util.ErrCorrupt, what, path, name)
		}
		cols[i] = idx
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", util.ErrCorrupt, what, path, err)
		}
		row := make([]string, len(cols))
		for i, c := range cols {
			if c < len(rec) {
				row[i] = strings.TrimSpace(rec[c])
			}
		}
		if row[0] == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func missing(path, what string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s not found at %s", util.ErrMissingInput, what, path)
	}
	return fmt.Errorf("read %s: %w", what, err)
}
