// Package cache maintains the grounding caches of a rule under
// specialization.
//
// A Fragment is the join state of one connected group of predicates. It
// holds a list of entries, and each entry holds one Block per predicate.
// A Block is the set of rows of that predicate which comply with every
// variable and constant bound so far, given the values the entry fixes
// for the linked variables. Specialization operators refine the entry
// list with splits (a new variable with two fresh occurrences), matches
// (a known variable gains an occurrence), selections (a constant) and
// merges (two fragments become linked).
//
// Rows are never copied or mutated. Every operation allocates a fresh
// entry list and swaps it in, so a cloned fragment shares its entries
// with the original until either side is next written.
//
// Mutating operations require BuildIndices to have been called since the
// previous mutation. Violations are programming errors and panic.
package cache
