package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Structure is a Horn rule: index 0 is the head, 1..n the body.
// Predicates are appended, never removed.
type Structure []Predicate

// Head returns the head predicate.
func (s Structure) Head() Predicate { return s[0] }

// Clone returns a deep copy.
func (s Structure) Clone() Structure {
	out := make(Structure, len(s))
	for i, p := range s {
		out[i] = p.Clone()
	}
	return out
}

// Arg returns the argument at loc.
func (s Structure) Arg(loc ArgLocation) Arg {
	return s[loc.PredIdx].Args[loc.ArgIdx]
}

// String renders the rule with numeric names.
func (s Structure) String() string { return s.Format(nil) }

// Format renders the rule as head:-body1,body2.
func (s Structure) Format(n Namer) string {
	var sb strings.Builder
	sb.WriteString(s[0].Format(n))
	sb.WriteString(":-")
	for i := 1; i < len(s); i++ {
		if i > 1 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i].Format(n))
	}
	return sb.String()
}

// Resolver maps display names to ids when parsing rules.
type Resolver interface {
	RelationID(name string) (functor, arity int, ok bool)
	ConstantID(name string) (int, bool)
}

// ParseError reports malformed rule text.
type ParseError struct {
	Text    string
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse rule %q at %d: %s", e.Text, e.Offset, e.Message)
}

// ParseStructure parses the text produced by Structure.Format.
// Variables are X<id>, "?" is an empty slot, anything else is a constant name.
func ParseStructure(text string, r Resolver) (Structure, error) {
	p := &ruleParser{text: strings.ReplaceAll(text, " ", ""), r: r}
	head, err := p.predicate()
	if err != nil {
		return nil, err
	}
	s := Structure{head}
	if !p.consume(":-") {
		return nil, p.fail("expected ':-'")
	}
	for p.pos < len(p.text) {
		if len(s) > 1 && !p.consume(",") {
			return nil, p.fail("expected ','")
		}
		pred, err := p.predicate()
		if err != nil {
			return nil, err
		}
		s = append(s, pred)
	}
	return s, nil
}

type ruleParser struct {
	text string
	pos  int
	r    Resolver
}

func (p *ruleParser) fail(msg string) error {
	return &ParseError{Text: p.text, Offset: p.pos, Message: msg}
}

func (p *ruleParser) consume(tok string) bool {
	if strings.HasPrefix(p.text[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *ruleParser) predicate() (Predicate, error) {
	open := strings.IndexByte(p.text[p.pos:], '(')
	if open <= 0 {
		return Predicate{}, p.fail("expected predicate name")
	}
	name := p.text[p.pos : p.pos+open]
	p.pos += open + 1
	closing := strings.IndexByte(p.text[p.pos:], ')')
	if closing < 0 {
		return Predicate{}, p.fail("unterminated argument list")
	}
	var parts []string
	if closing > 0 {
		parts = strings.Split(p.text[p.pos:p.pos+closing], ",")
	}
	functor, arity, ok := p.lookupRelation(name, len(parts))
	if !ok {
		return Predicate{}, p.fail(fmt.Sprintf("unknown relation %q", name))
	}
	if arity != len(parts) {
		return Predicate{}, p.fail(fmt.Sprintf("relation %q has arity %d, got %d arguments", name, arity, len(parts)))
	}
	pred := NewPredicate(functor, arity)
	for i, part := range parts {
		arg, err := p.argument(part)
		if err != nil {
			return Predicate{}, err
		}
		pred.Args[i] = arg
	}
	p.pos += closing + 1
	return pred, nil
}

func (p *ruleParser) lookupRelation(name string, arity int) (int, int, bool) {
	if p.r != nil {
		return p.r.RelationID(name)
	}
	if !strings.HasPrefix(name, "r") {
		return 0, 0, false
	}
	id, err := strconv.Atoi(name[1:])
	if err != nil {
		return 0, 0, false
	}
	return id, arity, true
}

func (p *ruleParser) argument(tok string) (Arg, error) {
	if tok == "?" {
		return Empty, nil
	}
	if len(tok) > 1 && tok[0] == 'X' {
		if id, err := strconv.Atoi(tok[1:]); err == nil {
			return Var(id), nil
		}
	}
	if p.r != nil {
		if c, ok := p.r.ConstantID(tok); ok {
			return Const(c), nil
		}
		return Empty, p.fail(fmt.Sprintf("unknown constant %q", tok))
	}
	c, err := strconv.Atoi(tok)
	if err != nil || c <= 0 || c > MaxConstant {
		return Empty, p.fail(fmt.Sprintf("bad constant %q", tok))
	}
	return Const(c), nil
}
