package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrKeyNotFound indicates the requested key has no value.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrTenantNotFound indicates the named tenant does not exist.
	ErrTenantNotFound = errors.New("store: tenant not found")

	// ErrTenantExists indicates a tenant with that name already exists.
	ErrTenantExists = errors.New("store: tenant already exists")

	// ErrEmptyTenantName indicates an empty tenant name was supplied.
	ErrEmptyTenantName = errors.New("store: empty tenant name")

	// ErrTxnReadOnly indicates a write on a read-only transaction.
	ErrTxnReadOnly = errors.New("store: transaction is read-only")

	// ErrTxnFinished indicates use of a committed or discarded transaction.
	ErrTxnFinished = errors.New("store: transaction already finished")
)
