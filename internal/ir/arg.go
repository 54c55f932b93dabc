package ir

import "strconv"

// Arg is an encoded rule argument.
//
// Encoding:
//   - 0 is an empty slot (an unlimited variable, printed as "?")
//   - High bit set marks a limited variable; the low 31 bits hold its id
//   - Anything else is a constant in 1..2^31-1
type Arg uint32

const (
	// Empty is the unbound argument.
	Empty Arg = 0

	varFlag Arg = 1 << 31
	idMask  Arg = varFlag - 1

	// MaxConstant is the largest encodable constant.
	MaxConstant = int(idMask)
)

// Var returns the argument for limited variable id.
func Var(id int) Arg {
	return varFlag | (Arg(id) & idMask)
}

// Const returns the argument for constant c. c must be in 1..MaxConstant.
func Const(c int) Arg {
	return Arg(c) & idMask
}

// IsEmpty reports whether the argument is unbound.
func (a Arg) IsEmpty() bool { return a == Empty }

// IsVar reports whether the argument is a limited variable.
func (a Arg) IsVar() bool { return a&varFlag != 0 }

// IsConst reports whether the argument is a constant.
func (a Arg) IsConst() bool { return a != Empty && a&varFlag == 0 }

// ID returns the variable id or constant value.
func (a Arg) ID() int { return int(a & idMask) }

// String renders the argument without constant names.
func (a Arg) String() string {
	return a.format(nil)
}

func (a Arg) format(n Namer) string {
	switch {
	case a.IsEmpty():
		return "?"
	case a.IsVar():
		return "X" + strconv.Itoa(a.ID())
	case n != nil:
		return n.ConstantName(a.ID())
	default:
		return strconv.Itoa(a.ID())
	}
}

// ArgLocation addresses one argument slot of a rule structure.
type ArgLocation struct {
	PredIdx int `json:"pred_idx"`
	ArgIdx  int `json:"arg_idx"`
}
