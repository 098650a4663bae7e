// Package jobmonitor tracks background queue health inside ygbackend.
//
// Layering:
// - domain: queue snapshots, policies, scaling/timeout/recycle rules
// - application: use cases over explicit ports
// - adapters: memory, sqlite, policy file and HTTP implementations
// - transport: module-private DTOs for HTTP contracts
//
// Boundary notes:
// - Monitor state lives in SQLite so API and worker processes share it.
// - Critical transitions leave the context only as outbox events.
package jobmonitor
