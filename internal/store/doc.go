// Package store persists fragments, revision history, and execution
// diagnostics.
//
// The gateway consumes only the narrow Gateway contract (fetch active
// fragments, disable one, write a diagnostic); the admin surface uses the
// full Store. The SQLite implementation keeps everything in three tables
// with single-row writes — the gateway never needs a multi-step transaction
// since each fragment's disable is independent.
package store
