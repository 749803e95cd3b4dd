package acquire

import (
	"hash/fnv"
	"math/rand/v2"
)

// Sampler draws candidates uniformly at random without replacement.
// The draw order depends only on the seed, the class id and the initial
// pool order.
type Sampler struct {
	rng  *rand.Rand
	pool []Candidate
}

// NewSampler copies pool; the caller's slice is never modified
func NewSampler(seed uint64, classID string, pool []Candidate) *Sampler {
	h := fnv.New64a()
	h.Write([]byte(classID))

	cp := make([]Candidate, len(pool))
	copy(cp, pool)

	return &Sampler{
		rng:  rand.New(rand.NewPCG(seed, h.Sum64())),
		pool: cp,
	}
}

// Len returns the number of candidates not yet drawn
func (s *Sampler) Len() int {
	return len(s.pool)
}

// Next removes and returns one candidate. ok is false once the pool is empty.
func (s *Sampler) Next() (c Candidate, ok bool) {
	n := len(s.pool)
	if n == 0 {
		return Candidate{}, false
	}
	i := s.rng.IntN(n)
	c = s.pool[i]
	s.pool[i] = s.pool[n-1]
	s.pool = s.pool[:n-1]
	return c, true
}

// ActivePool returns pool minus candidates whose SourceID is in done,
// keeping the first occurrence of any repeated SourceID.
func ActivePool(pool []Candidate, done map[string]struct{}) []Candidate {
	seen := make(map[string]struct{}, len(pool))
	active := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if _, dup := seen[c.SourceID]; dup {
			continue
		}
		seen[c.SourceID] = struct{}{}
		if _, logged := done[c.SourceID]; logged {
			continue
		}
		active = append(active, c)
	}
	return active
}
