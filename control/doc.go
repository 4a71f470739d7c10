// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug introspection and the admin HTTP surface of the
// echo service.
//
// Provides concurrent-safe state handling primitives including:
//   - Prometheus collectors fed by session telemetry
//   - Named debug probes evaluated on demand
//   - A chi router exposing /metrics, /healthz and /debug/probes
package control
