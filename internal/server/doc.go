// Package server wires the engine together and serves the admin API.
//
// This package orchestrates all components:
//   - SQLite persistence store
//   - Condition evaluator and sandboxed executor
//   - Execution gateway (ambient passes, markers, circuit breaker)
//   - HTTP routing with Gin framework
//   - Middleware stack (request ids, CORS, rate limiting, metrics, recovery)
//
// Server Lifecycle:
//  1. Load configuration from environment
//  2. Initialize logger (production or development)
//  3. Open the fragment store
//  4. Build the execution gateway
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//
// Hosts embedding the engine in-process use Gateway() directly and skip
// the HTTP surface.
package server
