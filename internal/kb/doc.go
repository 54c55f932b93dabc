// Package kb holds the knowledge base the miner compresses.
//
// A KB is a set of relations over integer constants 1..N. Each relation
// is backed by an immutable IntTable (column-sorted rows with per-column
// value indexes) and carries a mutable entailment bitset recording which
// facts are already derived by mined rules.
//
// IntTable is the join substrate for the cache layer: GetSlice,
// SplitSlices and the MatchSlices family are binary-search and
// sort-merge operations over those per-column indexes. Tables never
// change after construction and may be shared freely across goroutines.
//
// The package also supplies the negative-sample collaborators: a uniform
// sampler and interval-based sample weights.
package kb
