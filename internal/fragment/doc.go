// Package fragment defines the core domain model: stored code fragments,
// their content kinds, injection modes, revision snapshots, and execution
// diagnostics.
//
// A Fragment is a user-authored unit of code with a declared Kind
// (server-logic, script, stylesheet, markup) and serialized run conditions.
// Kind and InjectionMode are closed enums so that adding or removing a kind
// is a type-checked change through the validator and executor.
//
// Invariants enforced here:
//   - On-demand fragments must be server-logic or markup kind
//   - Deleted fragments are never executed regardless of Active
//   - Revision history is capped at MaxRevisions, oldest pruned first
package fragment
