// File: internal/stats/doc.go
// Package stats implements atomic counters, latency accumulation, and a
// typed registry of named per-component snapshots, so a single GET /stats
// call can return a coherent view of every wired component without each
// one needing to know about the others.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package stats
