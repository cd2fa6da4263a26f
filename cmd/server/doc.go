// Package main is the entry point for the EdgeCode admin server.
//
// The server fronts the fragment engine: a store of user-authored code
// fragments, a condition evaluator, a sandboxed executor, and the
// execution gateway hosts call during page rendering.
//
// The server provides:
//   - REST API for fragment management (CRUD, trash, revisions)
//   - Syntax validation and one-off test runs
//   - Diagnostics pickup after auto-disables
//   - JSON import/export
//   - Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -store fragments.db
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
