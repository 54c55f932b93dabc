package kb

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/sinc/internal/ir"
)

var (
	// ErrDuplicateRelation is returned when a relation name is added twice.
	ErrDuplicateRelation = errors.New("duplicate relation")

	// ErrArityMismatch is returned when a row does not match its relation's arity.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrBadConstant is returned for constants outside 1..ir.MaxConstant.
	ErrBadConstant = errors.New("constant out of range")
)

// KB is a named set of relations sharing one constant domain.
type KB struct {
	Name string

	relations      []*Relation
	byName         map[string]*Relation
	constants      *Numeration
	totalConstants int
}

// New returns an empty KB. A nil numeration makes constants anonymous.
func New(name string, constants *Numeration) *KB {
	k := &KB{Name: name, byName: make(map[string]*Relation), constants: constants}
	if constants != nil {
		k.totalConstants = constants.Len()
	}
	return k
}

// AddRelation indexes rows as a new relation with the next relation id.
// Duplicate rows are removed.
func (k *KB) AddRelation(name string, arity int, rows [][]int) (*Relation, error) {
	if _, ok := k.byName[name]; ok {
		return nil, fmt.Errorf("add relation %q: %w", name, ErrDuplicateRelation)
	}
	seen := make(map[string]struct{}, len(rows))
	distinct := make([][]int, 0, len(rows))
	for _, row := range rows {
		if len(row) != arity {
			return nil, fmt.Errorf("add relation %q: row %v: %w", name, row, ErrArityMismatch)
		}
		for _, c := range row {
			if c <= 0 || c > ir.MaxConstant {
				return nil, fmt.Errorf("add relation %q: %d: %w", name, c, ErrBadConstant)
			}
			k.totalConstants = max(k.totalConstants, c)
		}
		key := ir.RowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, row)
	}
	rel := NewRelation(len(k.relations), name, arity, distinct)
	k.relations = append(k.relations, rel)
	k.byName[name] = rel
	return rel, nil
}

// Relation returns the relation with the given id.
func (k *KB) Relation(id int) *Relation { return k.relations[id] }

// RelationByName looks a relation up by name.
func (k *KB) RelationByName(name string) (*Relation, bool) {
	rel, ok := k.byName[name]
	return rel, ok
}

// Relations returns all relations ordered by id.
func (k *KB) Relations() []*Relation { return k.relations }

// TotalConstants returns the size of the constant domain.
func (k *KB) TotalConstants() int { return k.totalConstants }

// TotalRecords returns the number of facts over all relations.
func (k *KB) TotalRecords() int {
	n := 0
	for _, rel := range k.relations {
		n += rel.Len()
	}
	return n
}

// Numeration returns the constant names, or nil.
func (k *KB) Numeration() *Numeration { return k.constants }

// RelationName implements ir.Namer.
func (k *KB) RelationName(functor int) string {
	if functor < 0 || functor >= len(k.relations) {
		return "r" + strconv.Itoa(functor)
	}
	return k.relations[functor].Name
}

// ConstantName implements ir.Namer.
func (k *KB) ConstantName(c int) string {
	if k.constants != nil {
		if name := k.constants.Name(c); name != "" {
			return name
		}
	}
	return strconv.Itoa(c)
}

// RelationID implements ir.Resolver.
func (k *KB) RelationID(name string) (int, int, bool) {
	rel, ok := k.byName[name]
	if !ok {
		return 0, 0, false
	}
	return rel.ID, rel.Arity(), true
}

// ConstantID implements ir.Resolver.
func (k *KB) ConstantID(name string) (int, bool) {
	if k.constants != nil {
		if id, ok := k.constants.ID(name); ok {
			return id, true
		}
	}
	c, err := strconv.Atoi(name)
	if err != nil || c <= 0 || c > k.totalConstants {
		return 0, false
	}
	return c, true
}
