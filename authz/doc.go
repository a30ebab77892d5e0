// Package authz is the token authorization gate placed in front of the
// multi-tenant transactional store.
//
// Every client transaction carries a signed claim set. The Validator verifies
// the signature against the rotating key set and checks the temporal and
// tenant claims; the TokenCache memoizes validation results for a bounded
// time; the tenant guard enforces that a transaction only touches tenants
// named in the token; and the Gate wires those together with the keyspace
// guard into the transaction read/write/commit path.
//
// Every denial surfaces to callers as the single ErrPermissionDenied kind.
// The specific reason (bad signature, expired claim, tenant mismatch, ...)
// is retained internally for diagnostics only.
package authz
