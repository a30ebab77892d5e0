// Package keyset maintains the set of trusted public keys used to verify
// token signatures.
//
// A KeySet is an immutable snapshot parsed atomically from an external JWKS
// document. The Store refreshes it on a fixed interval off the request path
// and publishes it through an atomic pointer swap, so readers never hold a
// lock during verification and never observe a partially updated set. A fetch
// or parse failure leaves the prior set in effect; it is an operational error,
// not a per-request denial.
package keyset
