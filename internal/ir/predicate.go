package ir

import (
	"strconv"
	"strings"
)

// Namer resolves integer ids back to display names.
type Namer interface {
	RelationName(functor int) string
	ConstantName(c int) string
}

// Predicate is a relation symbol applied to a fixed-length argument list.
type Predicate struct {
	Functor int   `json:"functor"`
	Args    []Arg `json:"args"`
}

// NewPredicate returns a predicate of the given arity with every slot empty.
func NewPredicate(functor, arity int) Predicate {
	return Predicate{Functor: functor, Args: make([]Arg, arity)}
}

// Arity returns the number of arguments.
func (p Predicate) Arity() int { return len(p.Args) }

// Clone returns a deep copy.
func (p Predicate) Clone() Predicate {
	return Predicate{Functor: p.Functor, Args: append([]Arg(nil), p.Args...)}
}

// Equal reports whether both predicates have the same functor and arguments.
func (p Predicate) Equal(o Predicate) bool {
	if p.Functor != o.Functor || len(p.Args) != len(o.Args) {
		return false
	}
	for i := range p.Args {
		if p.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// HasVar reports whether any argument is a limited variable.
func (p Predicate) HasVar() bool {
	for _, a := range p.Args {
		if a.IsVar() {
			return true
		}
	}
	return false
}

// IsGround reports whether every argument is bound.
func (p Predicate) IsGround() bool {
	for _, a := range p.Args {
		if a.IsEmpty() {
			return false
		}
	}
	return true
}

// String renders the predicate with numeric names.
func (p Predicate) String() string { return p.Format(nil) }

// Format renders the predicate as name(arg,...). A nil Namer prints ids.
func (p Predicate) Format(n Namer) string {
	var sb strings.Builder
	if n != nil {
		sb.WriteString(n.RelationName(p.Functor))
	} else {
		sb.WriteString("r")
		sb.WriteString(strconv.Itoa(p.Functor))
	}
	sb.WriteByte('(')
	for i, a := range p.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.format(n))
	}
	sb.WriteByte(')')
	return sb.String()
}
