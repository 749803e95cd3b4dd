package ontology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/franz/audioset-prep/internal/util"
)

const ontologyJSON = `[
  {"id": "/m/0dgw9r", "name": "Human sounds", "child_ids": ["/m/09x0r"], "restrictions": ["abstract"]},
  {"id": "/m/09x0r", "name": "Speech", "child_ids": [], "restrictions": []},
  {"id": "/m/0bt9lr", "name": "Dog", "child_ids": [], "restrictions": []},
  {"id": "/m/blk", "name": "Blacklisted", "child_ids": [], "restrictions": ["blacklist"]},
  {"id": "/m/noqa", "name": "Unrated", "child_ids": [], "restrictions": []},
  {"id": "/m/cafe", "name": "Cafe\u0301 noise", "child_ids": [], "restrictions": []}
]`

const qualityCSV = `label_id,num_rated,num_true
/m/0dgw9r,10,9
/m/09x0r,10,10
/m/0bt9lr,10,7
/m/blk,10,10
/m/cafe,10,5
`

const labelsCSV = `index,mid,display_name
0,/m/09x0r,"Speech"
1,/m/0bt9lr,"Dog"
2,/m/0dgw9r,"Human sounds"
`

func fixture(t *testing.T) ([]Node, map[string]Quality, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"ontology.json":            ontologyJSON,
		"qa_true_counts.csv":       qualityCSV,
		"class_labels_indices.csv": labelsCSV,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	nodes, err := LoadOntology(filepath.Join(dir, "ontology.json"))
	if err != nil {
		t.Fatalf("LoadOntology failed: %v", err)
	}
	quality, err := LoadQuality(filepath.Join(dir, "qa_true_counts.csv"))
	if err != nil {
		t.Fatalf("LoadQuality failed: %v", err)
	}
	labels, err := LoadLabels(filepath.Join(dir, "class_labels_indices.csv"))
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	return nodes, quality, labels
}

func TestSelect(t *testing.T) {
	nodes, quality, labels := fixture(t)

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"leaf only, 0.7", Criteria{QualityThreshold: 0.7, LeafOnly: true}, []string{"/m/09x0r", "/m/0bt9lr"}},
		{"leaf only, 0.8", Criteria{QualityThreshold: 0.8, LeafOnly: true}, []string{"/m/09x0r"}},
		{"all nodes, 0.8", Criteria{QualityThreshold: 0.8}, []string{"/m/0dgw9r", "/m/09x0r"}},
		{"leaf only, 0", Criteria{LeafOnly: true}, []string{"/m/09x0r", "/m/0bt9lr", "/m/cafe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range Select(nodes, quality, labels, tt.c) {
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("selection mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectDisplayNames(t *testing.T) {
	nodes, quality, labels := fixture(t)
	classes := Select(nodes, quality, labels, Criteria{LeafOnly: true})

	byID := map[string]string{}
	for _, c := range classes {
		byID[c.ID] = c.DisplayName
	}
	if byID["/m/0bt9lr"] != "Dog" {
		t.Errorf("expected label name Dog, got %q", byID["/m/0bt9lr"])
	}
	// Not in labels: ontology name, NFC-composed
	if byID["/m/cafe"] != "Café noise" {
		t.Errorf("expected composed ontology name, got %q", byID["/m/cafe"])
	}
}

func TestSweep(t *testing.T) {
	nodes, quality, labels := fixture(t)
	points := Sweep(nodes, quality, labels, true)

	if len(points) != 21 {
		t.Fatalf("expected 21 thresholds, got %d", len(points))
	}
	checks := map[int]int{0: 3, 10: 3, 14: 2, 15: 1, 20: 1}
	for i, want := range checks {
		if points[i].Count != want {
			t.Errorf("threshold %.2f: expected %d classes, got %d", points[i].Threshold, want, points[i].Count)
		}
	}
	for i := 1; i < len(points); i++ {
		if points[i].Count > points[i-1].Count {
			t.Errorf("count rose from %.2f to %.2f", points[i-1].Threshold, points[i].Threshold)
		}
	}
}

func TestClassListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suitable_classes.csv")
	classes := []Class{
		{ID: "/m/09x0r", DisplayName: "Speech"},
		{ID: "/m/07qrkrw", DisplayName: "Meow, cat"},
	}
	if err := WriteClassList(path, classes); err != nil {
		t.Fatalf("WriteClassList failed: %v", err)
	}
	got, err := ReadClassList(path)
	if err != nil {
		t.Fatalf("ReadClassList failed: %v", err)
	}
	if diff := cmp.Diff(classes, got); diff != "" {
		t.Errorf("class list mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingInputs(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadOntology(filepath.Join(dir, "ontology.json")); !errors.Is(err, util.ErrMissingInput) {
		t.Errorf("LoadOntology: expected ErrMissingInput, got %v", err)
	}
	if _, err := LoadQuality(filepath.Join(dir, "qa.csv")); !errors.Is(err, util.ErrMissingInput) {
		t.Errorf("LoadQuality: expected ErrMissingInput, got %v", err)
	}
	if _, err := ReadClassList(filepath.Join(dir, "classes.csv")); !errors.Is(err, util.ErrMissingInput) {
		t.Errorf("ReadClassList: expected ErrMissingInput, got %v", err)
	}
}

func TestFolderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dog", "Dog"},
		{"Bird vocalization, bird call, bird song", "Bird vocalization, bird call, bird song"},
		{"AC/DC", "AC_DC"},
		{"What? *", "What_ _"},
		{" trailing dots... ", "trailing dots"},
		{"Café", "Café"},
		{"///", "___"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := FolderName(tt.in); got != tt.want {
			t.Errorf("FolderName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpecs(t *testing.T) {
	specs := Specs([]Class{{ID: "/m/x", DisplayName: "A/B"}})
	if len(specs) != 1 || specs[0].Folder != "A_B" || specs[0].DisplayName != "A/B" || specs[0].ClassID != "/m/x" {
		t.Errorf("unexpected specs %+v", specs)
	}
}
