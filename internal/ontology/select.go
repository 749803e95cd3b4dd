package ontology

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/audioset-prep/internal/acquire"
	"github.com/franz/audioset-prep/internal/util"
)

// Class is one selected class
type Class struct {
	ID          string
	DisplayName string
}

// Criteria filter the ontology
type Criteria struct {
	QualityThreshold float64
	LeafOnly         bool
}

// Select returns the classes meeting c, in ontology order. Classes without
// a quality estimate are skipped; a missing display name falls back to the
// ontology name.
func Select(nodes []Node, quality map[string]Quality, labels map[string]string, c Criteria) []Class {
	var out []Class
	for i := range nodes {
		n := &nodes[i]
		if c.LeafOnly && !n.IsLeaf() {
			continue
		}
		if n.IsBlacklisted() {
			continue
		}
		q, ok := quality[n.ID]
		if !ok || q.Rate() < c.QualityThreshold {
			continue
		}
		name := labels[n.ID]
		if name == "" {
			name = n.Name
		}
		out = append(out, Class{ID: n.ID, DisplayName: norm.NFC.String(name)})
	}
	return out
}

// SweepPoint is the class count at one threshold
type SweepPoint struct {
	Threshold float64
	Count     int
}

// Sweep counts selectable classes at thresholds 0.00, 0.05, ..., 1.00
func Sweep(nodes []Node, quality map[string]Quality, labels map[string]string, leafOnly bool) []SweepPoint {
	points := make([]SweepPoint, 0, 21)
	for i := 0; i <= 20; i++ {
		th := float64(i) / 20
		n := len(Select(nodes, quality, labels, Criteria{QualityThreshold: th, LeafOnly: leafOnly}))
		points = append(points, SweepPoint{Threshold: th, Count: n})
	}
	return points
}

var classListHeader = []string{"class_id", "display_name"}

// WriteClassList stores the selection as CSV (class_id,display_name)
func WriteClassList(path string, classes []Class) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(classListHeader); err != nil {
		return err
	}
	for _, c := range classes {
		if err := w.Write([]string{c.ID, c.DisplayName}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, buf.Bytes())
}

// ReadClassList loads a list written by WriteClassList
func ReadClassList(path string) ([]Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, missing(path, "class list", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil || header[0] != classListHeader[0] {
		return nil, fmt.Errorf("%w: class list %s: bad header", util.ErrCorrupt, path)
	}

	var out []Class
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: class list %s: %v", util.ErrCorrupt, path, err)
		}
		out = append(out, Class{ID: rec[0], DisplayName: rec[1]})
	}
	return out, nil
}

// FolderName turns a display name into a directory name. Path separators
// and characters Windows rejects become underscores.
func FolderName(displayName string) string {
	name := norm.NFC.String(strings.TrimSpace(displayName))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "_"
	}
	return name
}

// Specs converts a selection into driver input
func Specs(classes []Class) []acquire.ClassSpec {
	specs := make([]acquire.ClassSpec, len(classes))
	for i, c := range classes {
		specs[i] = acquire.ClassSpec{
			ClassID:     c.ID,
			DisplayName: c.DisplayName,
			Folder:      FolderName(c.DisplayName),
		}
	}
	return specs
}
