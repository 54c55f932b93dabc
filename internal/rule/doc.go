// Package rule implements cached Horn rules and their specialization.
//
// A CachedRule owns the rule structure together with the caches needed to
// evaluate it incrementally:
//
//   - E+ joins the not yet entailed head rows with the body
//   - T joins the already entailed head rows with the body
//   - E holds one fragment per connected group of body predicates
//
// Specialize applies one of the five operations to a copy of the rule and
// runs it through the pipeline: structure update, duplicate check,
// well-formedness, tabu check, coverage check, then the remaining cache
// updates and evaluation. The receiver is never modified.
//
// Rules of one mining run share a Shared value, which holds the
// fingerprints already seen and the tabu set of insufficiently covering
// rules.
package rule
