package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/sinc/internal/kb"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const familyTSV = `# parent and child are inverses, except for carol
parent	alice	bob
parent	bob	carol
parent	carol	dave
child	bob	alice
child	carol	bob
gender	alice	female
`

// createTestKB builds a small named KB from familyTSV.
func createTestKB(t *testing.T) *kb.KB {
	t.Helper()
	b := kb.NewBuilder()
	if err := b.ReadTSV(strings.NewReader(familyTSV)); err != nil {
		t.Fatalf("ReadTSV() failed: %v", err)
	}
	k, err := b.Build("family")
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return k
}
