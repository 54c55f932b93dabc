package kb

import "golang.org/x/text/unicode/norm"

// Numeration interns constant names as integers 1..N.
// Names are NFC normalized so visually identical names share an id.
// Not thread-safe; built once while loading.
type Numeration struct {
	byName map[string]int
	names  []string
}

// NewNumeration returns an empty numeration. Id 0 is reserved.
func NewNumeration() *Numeration {
	return &Numeration{byName: make(map[string]int), names: []string{""}}
}

// Intern returns the id of name, allocating the next one if needed.
func (n *Numeration) Intern(name string) int {
	name = norm.NFC.String(name)
	if id, ok := n.byName[name]; ok {
		return id
	}
	id := len(n.names)
	n.names = append(n.names, name)
	n.byName[name] = id
	return id
}

// ID looks up a name without allocating.
func (n *Numeration) ID(name string) (int, bool) {
	id, ok := n.byName[norm.NFC.String(name)]
	return id, ok
}

// Name returns the name of id, or "" if unknown.
func (n *Numeration) Name(id int) string {
	if id <= 0 || id >= len(n.names) {
		return ""
	}
	return n.names[id]
}

// Len returns the number of interned names.
func (n *Numeration) Len() int { return len(n.names) - 1 }

// Names returns all names ordered by id, starting at id 1.
func (n *Numeration) Names() []string { return n.names[1:] }
