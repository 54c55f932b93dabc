package rule

import "fmt"

// Operation is a specialization step. The set is closed.
type Operation interface {
	fmt.Stringer
	operation()
}

// BindExisting binds an empty slot to an existing variable.
type BindExisting struct {
	PredIdx int
	ArgIdx  int
	VarID   int
}

// AppendBindExisting appends a new body predicate and binds one of its
// slots to an existing variable.
type AppendBindExisting struct {
	Functor int
	Arity   int
	ArgIdx  int
	VarID   int
}

// BindNewPair binds two empty slots to a fresh variable.
type BindNewPair struct {
	PredIdx1 int
	ArgIdx1  int
	PredIdx2 int
	ArgIdx2  int
}

// AppendBindNewPair appends a new body predicate and binds one of its slots
// and an existing empty slot to a fresh variable.
type AppendBindNewPair struct {
	Functor  int
	Arity    int
	ArgIdx1  int
	PredIdx2 int
	ArgIdx2  int
}

// AssignConstant binds an empty slot to a constant.
type AssignConstant struct {
	PredIdx  int
	ArgIdx   int
	Constant int
}

func (BindExisting) operation()       {}
func (AppendBindExisting) operation() {}
func (BindNewPair) operation()        {}
func (AppendBindNewPair) operation()  {}
func (AssignConstant) operation()     {}

func (o BindExisting) String() string {
	return fmt.Sprintf("bind(%d.%d=X%d)", o.PredIdx, o.ArgIdx, o.VarID)
}

func (o AppendBindExisting) String() string {
	return fmt.Sprintf("append(r%d/%d.%d=X%d)", o.Functor, o.Arity, o.ArgIdx, o.VarID)
}

func (o BindNewPair) String() string {
	return fmt.Sprintf("pair(%d.%d=%d.%d)", o.PredIdx1, o.ArgIdx1, o.PredIdx2, o.ArgIdx2)
}

func (o AppendBindNewPair) String() string {
	return fmt.Sprintf("append-pair(r%d/%d.%d=%d.%d)", o.Functor, o.Arity, o.ArgIdx1, o.PredIdx2, o.ArgIdx2)
}

func (o AssignConstant) String() string {
	return fmt.Sprintf("assign(%d.%d=%d)", o.PredIdx, o.ArgIdx, o.Constant)
}

// UpdateStatus is the outcome of a specialization.
type UpdateStatus int

const (
	Normal UpdateStatus = iota
	Invalid
	Duplicated
	InsufficientCoverage
	TabuPruned
)

func (s UpdateStatus) String() string {
	switch s {
	case Normal:
		return "normal"
	case Invalid:
		return "invalid"
	case Duplicated:
		return "duplicated"
	case InsufficientCoverage:
		return "insufficient_coverage"
	case TabuPruned:
		return "tabu_pruned"
	default:
		return fmt.Sprintf("UpdateStatus(%d)", int(s))
	}
}
