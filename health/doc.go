// Package health provides liveness checks for the authorization gate's
// dependencies: the trusted-key source, the serving key set, and the
// storage engine.
//
// Checkers implement the Checker interface and are combined by the
// Aggregator, which runs them concurrently under a shared timeout and
// reduces the per-component results to a single overall status. A degraded
// status means the gate still serves but an operator should look: an empty
// key set, for example, denies every token-authenticated request while
// administrative sessions keep working.
package health
