// Package store provides SQLite-backed storage for knowledge bases and
// mining runs.
//
// A database holds one KB:
//   - constants: the numeration, names interned as 1..N
//   - relations and facts: rows as canonical JSON integer arrays
//
// and any number of mining runs:
//   - runs: run id, configuration, status
//   - rules: every recorded rule with its evaluation, ordered by seq
//   - evidence: groundings proving the facts each rule entails
//   - counterexamples: head tuples a rule entails that are not facts
//
// # Ordering
//
// Rules are ordered by (run_id, seq); seq is the rule's position in its
// run, never a timestamp. Evidence and counterexamples keep the order the
// miner produced them in.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Rule and evidence ids are content hashes from internal/ir/hash.go.
package store
