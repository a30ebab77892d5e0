package store

import (
	"bytes"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// KV is one key-value pair returned by a range read. Keys are tenant-relative.
type KV struct {
	Key   []byte
	Value []byte
}

// Txn is a transaction scoped to a single tenant. Keys passed in are
// tenant-relative; the physical prefix is applied internally.
type Txn struct {
	txn      *badger.Txn
	prefix   []byte
	write    bool
	finished bool
}

// Begin starts a transaction for the named tenant.
func (s *Store) Begin(tenant string, write bool) (*Txn, error) {
	ok, err := s.HasTenant(tenant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTenantNotFound, tenant)
	}
	return &Txn{
		txn:    s.db.NewTransaction(write),
		prefix: dataPrefix(tenant),
		write:  write,
	}, nil
}

func (t *Txn) physical(key []byte) []byte {
	return append(append([]byte{}, t.prefix...), key...)
}

// Get returns the value for key, or ErrKeyNotFound.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.finished {
		return nil, ErrTxnFinished
	}
	item, err := t.txn.Get(t.physical(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores value under key.
func (t *Txn) Set(key, value []byte) error {
	if t.finished {
		return ErrTxnFinished
	}
	if !t.write {
		return ErrTxnReadOnly
	}
	return t.txn.Set(t.physical(key), append([]byte{}, value...))
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Txn) Delete(key []byte) error {
	if t.finished {
		return ErrTxnFinished
	}
	if !t.write {
		return ErrTxnReadOnly
	}
	return t.txn.Delete(t.physical(key))
}

// GetRange returns pairs with begin <= key < end, up to limit (0 = no limit).
func (t *Txn) GetRange(begin, end []byte, limit int) ([]KV, error) {
	if t.finished {
		return nil, ErrTxnFinished
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = t.prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	physEnd := t.physical(end)
	var out []KV
	for it.Seek(t.physical(begin)); it.Valid(); it.Next() {
		item := it.Item()
		if bytes.Compare(item.Key(), physEnd) >= 0 {
			break
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, KV{
			Key:   item.KeyCopy(nil)[len(t.prefix):],
			Value: value,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ClearRange removes all keys with begin <= key < end.
func (t *Txn) ClearRange(begin, end []byte) error {
	if t.finished {
		return ErrTxnFinished
	}
	if !t.write {
		return ErrTxnReadOnly
	}

	kvs, err := t.GetRange(begin, end, 0)
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := t.txn.Delete(t.physical(kv.Key)); err != nil {
			return err
		}
	}
	return nil
}

// Commit makes the transaction's writes durable.
func (t *Txn) Commit() error {
	if t.finished {
		return ErrTxnFinished
	}
	t.finished = true
	return t.txn.Commit()
}

// Discard abandons the transaction. Safe to call after Commit.
func (t *Txn) Discard() {
	t.finished = true
	t.txn.Discard()
}
