// Package engine implements the beam-search rule miner.
//
// For each head relation the Miner repeatedly searches for the rule with
// the best score, records it, marks the facts it entails, and searches
// again until no useful rule remains or every fact is entailed.
//
// One search round:
//  1. Every beam rule builds its cache indices and probes all candidate
//     specializations. Beams are probed in parallel.
//  2. The probed candidates are merged best first, and a bounded number of
//     them are specialized for real. Those beating their parent enter a
//     top-K pool.
//  3. The search stops at a local optimum, when the best candidate reaches
//     the stop compression ratio, or when it entails no negative.
//
// Observation and pool updates run on one goroutine in a fixed order, so
// the mined rules depend only on the KB and the Config.
package engine
