// Package value provides the literal value types carried by query expressions.
//
// This package contains leaf types only and imports nothing internal. Every
// literal in an expression tree is one of the sealed Value types, which fixes
// the set of host values that can reach a SQL driver as a bound parameter.
//
// Key constraints:
//   - Values are immutable once constructed
//   - Array and Object exist for snapshot documents only and are never bound
//     as SQL parameters
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     golden snapshots and statement fingerprints
package value
