package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Physical key layout. Tenant registry entries sit in the reserved system
// keyspace; tenant data is namespaced under a per-tenant prefix terminated by
// a zero byte so tenant names cannot collide by extension.
var (
	tenantRegistryPrefix = append([]byte{0xff}, "/tenant/"...)
	tenantDataPrefix     = []byte("t/")
)

// Store is a multi-tenant transactional KV store over BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a store in the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests and tooling.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func registryKey(tenant string) []byte {
	return append(append([]byte{}, tenantRegistryPrefix...), tenant...)
}

func dataPrefix(tenant string) []byte {
	p := append(append([]byte{}, tenantDataPrefix...), tenant...)
	return append(p, 0x00)
}

// CreateTenant registers a tenant. Administrative operation: the gate refuses
// it for token-authenticated sessions.
func (s *Store) CreateTenant(name string) error {
	if name == "" {
		return ErrEmptyTenantName
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := registryKey(name)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %q", ErrTenantExists, name)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, []byte{})
	})
}

// DeleteTenant unregisters a tenant and drops its data.
func (s *Store) DeleteTenant(name string) error {
	if name == "" {
		return ErrEmptyTenantName
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		key := registryKey(name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q", ErrTenantNotFound, name)
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	return s.db.DropPrefix(dataPrefix(name))
}

// HasTenant reports whether the tenant exists.
func (s *Store) HasTenant(name string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(registryKey(name))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return found, err
}

// ListTenants returns all registered tenant names in order.
func (s *Store) ListTenants() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = tenantRegistryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(tenantRegistryPrefix); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			names = append(names, string(key[len(tenantRegistryPrefix):]))
		}
		return nil
	})
	return names, err
}
