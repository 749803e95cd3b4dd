package acquire

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drawAll(s *Sampler) []string {
	var ids []string
	for {
		c, ok := s.Next()
		if !ok {
			return ids
		}
		ids = append(ids, c.SourceID)
	}
}

func TestSamplerWithoutReplacement(t *testing.T) {
	p := pool("a", "b", "c", "d", "e", "f", "g")
	s := NewSampler(42, "/m/09x0r", p)

	got := drawAll(s)
	if len(got) != len(p) {
		t.Fatalf("expected %d draws, got %d", len(p), len(got))
	}

	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e", "f", "g"}, sorted); diff != "" {
		t.Errorf("draws are not a permutation of the pool (-want +got):\n%s", diff)
	}

	if _, ok := s.Next(); ok {
		t.Error("expected empty sampler to report !ok")
	}
}

func TestSamplerDeterministic(t *testing.T) {
	p := pool("a", "b", "c", "d", "e", "f", "g", "h")

	first := drawAll(NewSampler(7, "/m/09x0r", p))
	second := drawAll(NewSampler(7, "/m/09x0r", p))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed and class produced different orders:\n%s", diff)
	}
}

func TestSamplerDoesNotMutatePool(t *testing.T) {
	p := pool("a", "b", "c")
	drawAll(NewSampler(1, "x", p))

	if diff := cmp.Diff(pool("a", "b", "c"), p); diff != "" {
		t.Errorf("caller pool was modified:\n%s", diff)
	}
}

func TestActivePool(t *testing.T) {
	p := []Candidate{
		{SourceID: "a", ClipStart: 0, ClipEnd: 10},
		{SourceID: "b", ClipStart: 5, ClipEnd: 15},
		{SourceID: "a", ClipStart: 20, ClipEnd: 30},
		{SourceID: "c", ClipStart: 1, ClipEnd: 11},
	}
	done := map[string]struct{}{"b": {}}

	want := []Candidate{
		{SourceID: "a", ClipStart: 0, ClipEnd: 10},
		{SourceID: "c", ClipStart: 1, ClipEnd: 11},
	}
	if diff := cmp.Diff(want, ActivePool(p, done)); diff != "" {
		t.Errorf("ActivePool mismatch (-want +got):\n%s", diff)
	}
}
