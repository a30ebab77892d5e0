// Package store implements the multi-tenant transactional key-value store the
// authorization gate fronts.
//
// Data is kept in BadgerDB. Each tenant's keys live under a private physical
// prefix so tenants are isolated at the storage layer as well; the tenant
// registry lives in the reserved system keyspace. The store performs no
// authorization itself: callers go through the gate, and administrative
// surfaces (tenant creation and deletion) are reachable only for
// non-token sessions because the gate refuses them otherwise.
package store
