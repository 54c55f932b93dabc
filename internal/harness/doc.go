// Package harness runs mining scenarios: a small KB, a configuration and
// a set of assertions about the rules the miner finds.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: inverse_family
//	description: "child is the inverse of parent"
//	facts:
//	  - parent alice bob
//	  - child bob alice
//	config:
//	  beamwidth: 3
//	  metric: τ
//	mine: [child]
//	assertions:
//	  - type: rule_found
//	    rule: "child(X0,X1):-parent(X1,X0)"
//	  - type: entailed
//	    relation: child
//	    count: 1
//
// Facts are either inline ("relation arg arg...") or read from a TSV file
// named by facts_file, relative to the scenario.
//
// # Assertion Types
//
//   - rule_found: the rule was mined, optionally with a given evidence count
//   - rule_absent: the rule was not mined
//   - rule_count: number of rules, for one relation or the whole run
//   - entailed: number of facts of a relation entailed by the run
//   - run_status: final status of the run
//
// # Determinism
//
// Every scenario mines a fresh in-memory database, with a fixed run id
// and trace events numbered from 1 in call order. Rules are read
// back from the store before assertions run, so a scenario also checks
// that what the miner found survives persistence.
package harness
