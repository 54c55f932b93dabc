package rule

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/sinc/internal/ir"
)

// eqClass is a sorted multiset of argument indicators.
type eqClass []string

func (c eqClass) key() string { return strings.Join(c, ",") }

// subsetOf reports whether c is a sub-multiset of o.
func (c eqClass) subsetOf(o eqClass) bool {
	j := 0
	for _, ind := range c {
		for j < len(o) && o[j] < ind {
			j++
		}
		if j == len(o) || o[j] != ind {
			return false
		}
		j++
	}
	return true
}

type classedPredicate struct {
	functor int
	args    []int // class index per argument
}

// Fingerprint identifies a rule up to variable renaming and body order.
//
// Each argument belongs to an equivalence class of indicators: a variable
// indicator functor.arg for every position, plus =c for a constant. All
// positions of one variable share a class; every empty slot and constant
// has its own.
type Fingerprint struct {
	classes []eqClass
	preds   []classedPredicate
	key     string
}

func varIndicator(functor, arg int) string {
	return strconv.Itoa(functor) + "." + strconv.Itoa(arg)
}

// NewFingerprint computes the fingerprint of s.
func NewFingerprint(s ir.Structure) *Fingerprint {
	fp := &Fingerprint{preds: make([]classedPredicate, len(s))}
	varClass := make(map[int]int)
	for pi, p := range s {
		cp := classedPredicate{functor: p.Functor, args: make([]int, len(p.Args))}
		for ai, a := range p.Args {
			ind := varIndicator(p.Functor, ai)
			switch {
			case a.IsVar():
				ci, ok := varClass[a.ID()]
				if !ok {
					ci = len(fp.classes)
					fp.classes = append(fp.classes, nil)
					varClass[a.ID()] = ci
				}
				fp.classes[ci] = append(fp.classes[ci], ind)
				cp.args[ai] = ci
			case a.IsConst():
				cp.args[ai] = len(fp.classes)
				fp.classes = append(fp.classes, eqClass{ind, "=" + strconv.Itoa(a.ID())})
			default:
				cp.args[ai] = len(fp.classes)
				fp.classes = append(fp.classes, eqClass{ind})
			}
		}
		fp.preds[pi] = cp
	}
	for _, c := range fp.classes {
		slices.Sort(c)
	}

	var sb strings.Builder
	head := fp.preds[0]
	sb.WriteString(strconv.Itoa(head.functor))
	for _, ci := range head.args {
		sb.WriteByte('[')
		sb.WriteString(fp.classes[ci].key())
		sb.WriteByte(']')
	}
	keys := make([]string, len(fp.classes))
	for i, c := range fp.classes {
		keys[i] = c.key()
	}
	slices.Sort(keys)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(keys, ";"))
	fp.key = sb.String()
	return fp
}

// Key returns the canonical string form. Equal rules have equal keys.
func (fp *Fingerprint) Key() string { return fp.key }

// Equal reports whether both fingerprints describe the same rule.
func (fp *Fingerprint) Equal(o *Fingerprint) bool { return fp.key == o.key }

// Hash returns the content hash of the fingerprint.
func (fp *Fingerprint) Hash() string {
	h, err := ir.ContentHash(ir.DomainFingerprint, ir.IRString(fp.key))
	if err != nil {
		panic(err)
	}
	return h
}

// Length returns the number of predicates.
func (fp *Fingerprint) Length() int { return len(fp.preds) }

func (fp *Fingerprint) predGeneralizes(p classedPredicate, o *Fingerprint, q classedPredicate) bool {
	if p.functor != q.functor || len(p.args) != len(q.args) {
		return false
	}
	for i := range p.args {
		if !fp.classes[p.args[i]].subsetOf(o.classes[q.args[i]]) {
			return false
		}
	}
	return true
}

// GeneralizationOf reports whether every grounding of other is also a
// grounding of fp.
func (fp *Fingerprint) GeneralizationOf(other *Fingerprint) bool {
	if len(fp.preds) > len(other.preds) {
		return false
	}
	head, oHead := fp.preds[0], other.preds[0]
	if !fp.predGeneralizes(head, other, oHead) {
		return false
	}
	if len(head.args) == 2 && (head.args[0] == head.args[1]) != (oHead.args[0] == oHead.args[1]) {
		return false
	}
	for _, p := range fp.preds[1:] {
		found := false
		for _, q := range other.preds[1:] {
			if fp.predGeneralizes(p, other, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
