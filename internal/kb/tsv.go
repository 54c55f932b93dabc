package kb

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Builder accumulates named facts and interns their constants.
type Builder struct {
	constants *Numeration
	facts     map[string][][]int
	arities   map[string]int
	order     []string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		constants: NewNumeration(),
		facts:     make(map[string][][]int),
		arities:   make(map[string]int),
	}
}

// Add records one fact.
func (b *Builder) Add(relation string, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("fact %s: %w: no arguments", relation, ErrArityMismatch)
	}
	arity, ok := b.arities[relation]
	if !ok {
		b.arities[relation] = len(args)
		b.order = append(b.order, relation)
	} else if arity != len(args) {
		return fmt.Errorf("fact %s%v: %w: want %d", relation, args, ErrArityMismatch, arity)
	}
	row := make([]int, len(args))
	for i, a := range args {
		row[i] = b.constants.Intern(a)
	}
	b.facts[relation] = append(b.facts[relation], row)
	return nil
}

// Build returns the KB. Relations are numbered in first-seen order.
func (b *Builder) Build(name string) (*KB, error) {
	k := New(name, b.constants)
	for _, rel := range b.order {
		if _, err := k.AddRelation(rel, b.arities[rel], b.facts[rel]); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// ReadTSV adds every "relation<TAB>arg<TAB>arg..." line of r.
// Blank lines and lines starting with '#' are skipped.
func (b *Builder) ReadTSV(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if err := b.Add(fields[0], fields[1:]...); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

// WriteTSV dumps every fact of k, relations in id order, rows in
// lexicographic order.
func WriteTSV(w io.Writer, k *KB) error {
	bw := bufio.NewWriter(w)
	for _, rel := range k.Relations() {
		for _, row := range rel.Rows() {
			bw.WriteString(rel.Name)
			for _, c := range row {
				bw.WriteByte('\t')
				bw.WriteString(k.ConstantName(c))
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// RelationNames returns the relation names of k sorted alphabetically.
func RelationNames(k *KB) []string {
	names := make([]string, 0, len(k.relations))
	for _, rel := range k.relations {
		names = append(names, rel.Name)
	}
	sort.Strings(names)
	return names
}
