// Package ir provides the symbolic representation shared by every SInC layer.
//
// It defines arguments, predicates, rule structures and records, plus the
// canonical JSON and content-addressed hashing used to identify mined rules.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Arguments are packed into a uint32 so tag tests are a single mask
//   - Constants are positive integers; names live in the KB numeration
//   - NO float types in canonical form - scores never contribute to ids
//   - All JSON tags use snake_case
package ir
