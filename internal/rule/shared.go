package rule

import (
	"slices"
	"sync"

	"github.com/roach88/sinc/internal/ir"
)

// Shared is the search state common to the rules of one search: the
// fingerprints already produced, and the tabu set. Safe for concurrent
// use.
//
// The tabu set may outlive a search. Entailing facts only shrinks E+, so a
// rule that covered too little keeps covering too little; NextSearch
// carries the tabu set over to the next search of the same relation.
type Shared struct {
	mu           sync.Mutex
	fingerprints map[string]struct{}
	tabu         *tabuSet
}

type tabuSet struct {
	mu   sync.Mutex
	byFn map[string][]*Fingerprint
}

// NewShared returns empty search state.
func NewShared() *Shared {
	return &Shared{
		fingerprints: make(map[string]struct{}),
		tabu:         &tabuSet{byFn: make(map[string][]*Fingerprint)},
	}
}

// NextSearch returns state for a new search of the same head relation:
// no fingerprints, and the tabu set of s.
func (s *Shared) NextSearch() *Shared {
	return &Shared{
		fingerprints: make(map[string]struct{}),
		tabu:         s.tabu,
	}
}

// Observe records fp and reports whether it had been seen before.
func (s *Shared) Observe(fp *Fingerprint) (duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fingerprints[fp.key]; ok {
		return true
	}
	s.fingerprints[fp.key] = struct{}{}
	return false
}

// Seen reports whether fp has been observed.
func (s *Shared) Seen(fp *Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fingerprints[fp.key]
	return ok
}

// Size returns the number of fingerprints and tabu entries recorded.
func (s *Shared) Size() (fingerprints, tabu int) {
	s.mu.Lock()
	fingerprints = len(s.fingerprints)
	s.mu.Unlock()
	s.tabu.mu.Lock()
	defer s.tabu.mu.Unlock()
	for _, fps := range s.tabu.byFn {
		tabu += len(fps)
	}
	return fingerprints, tabu
}

// AddTabu records a rule whose coverage is too low. Any specialization of
// it will be pruned.
func (s *Shared) AddTabu(structure ir.Structure, fp *Fingerprint) {
	functors := make([]int, 0, len(structure)-1)
	for _, p := range structure[1:] {
		functors = append(functors, p.Functor)
	}
	slices.Sort(functors)
	key := ir.RowKey(functors)
	s.tabu.mu.Lock()
	s.tabu.byFn[key] = append(s.tabu.byFn[key], fp)
	s.tabu.mu.Unlock()
}

// Tabu reports whether some tabu rule generalizes fp. Only tabu rules
// whose body functors form a sub-multiset of structure's are compared.
func (s *Shared) Tabu(structure ir.Structure, fp *Fingerprint) bool {
	body := make([]int, 0, len(structure)-1)
	for _, p := range structure[1:] {
		body = append(body, p.Functor)
	}
	slices.Sort(body)
	s.tabu.mu.Lock()
	defer s.tabu.mu.Unlock()
	if len(s.tabu.byFn) == 0 {
		return false
	}
	for size := 0; size < len(structure); size++ {
		for _, key := range categorySubsets(body, size) {
			for _, t := range s.tabu.byFn[key] {
				if t.GeneralizationOf(fp) {
					return true
				}
			}
		}
	}
	return false
}

// categorySubsets returns the keys of every distinct sub-multiset of the
// sorted functors with the given size.
func categorySubsets(sorted []int, size int) []string {
	seen := make(map[string]struct{})
	var out []string
	pick := make([]int, 0, size)
	var rec func(start int)
	rec = func(start int) {
		if len(pick) == size {
			key := ir.RowKey(pick)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				out = append(out, key)
			}
			return
		}
		for i := start; i < len(sorted); i++ {
			if i > start && sorted[i] == sorted[i-1] {
				continue
			}
			pick = append(pick, sorted[i])
			rec(i + 1)
			pick = pick[:len(pick)-1]
		}
	}
	rec(0)
	return out
}
