package testutil

// DefaultRunID is used when a scenario names no run id.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run id on every call, so repeated
// runs of a scenario store byte-identical records.
//
// engine.FixedGenerator hands out a list of ids once each; this one never
// runs out.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id, or DefaultRunID if
// id is empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
