// Package observe provides observability primitives for the authorization gate.
//
// It is a pure instrumentation library: no policy, no transport, no I/O beyond
// exporter setup. Authorization decisions and key rotation events are recorded
// here; detailed denial reasons live only in these diagnostics and are never
// surfaced to clients. Raw token material is redacted from log output.
package observe
