package authz

import (
	"context"

	"github.com/FuhengZhao/foundationdb/store"
)

// Tx is a tenant transaction checked by the gate. Every read and write runs
// through Authorize before touching storage, so a transaction that loses its
// authorization mid-flight fails on its next operation rather than at commit.
type Tx struct {
	gate   *Gate
	ctx    context.Context
	token  []byte
	tenant string
	inner  *store.Txn

	systemKeys     bool
	relaxedSpecial bool
}

// Begin opens a gated transaction for tenant. The token is captured once and
// applies to every operation on the transaction.
func (g *Gate) Begin(ctx context.Context, token []byte, tenant string, write bool) (*Tx, error) {
	if g.store == nil {
		return nil, ErrNoStore
	}
	inner, err := g.store.Begin(tenant, write)
	if err != nil {
		return nil, err
	}
	return &Tx{
		gate:   g,
		ctx:    ctx,
		token:  token,
		tenant: tenant,
		inner:  inner,
	}, nil
}

// Transact runs fn inside a gated read-write transaction for tenant,
// committing on success and discarding on any error. fn must not retain the
// transaction past its return.
func (g *Gate) Transact(ctx context.Context, token []byte, tenant string, fn func(*Tx) error) error {
	tx, err := g.Begin(ctx, token, tenant, true)
	if err != nil {
		return err
	}
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AccessSystemKeys requests system-key access for this transaction. For
// token-authenticated sessions the request changes nothing: privileged
// ranges stay denied.
func (t *Tx) AccessSystemKeys() {
	t.systemKeys = true
}

// RelaxedSpecialKeyspace requests the relaxed special keyspace mode. Same
// caveat as AccessSystemKeys.
func (t *Tx) RelaxedSpecialKeyspace() {
	t.relaxedSpecial = true
}

func (t *Tx) authorize(begin, end []byte, write bool) error {
	return t.gate.Authorize(t.ctx, t.token, Access{
		Tenant:         t.tenant,
		Begin:          begin,
		End:            end,
		Write:          write,
		SystemKeys:     t.systemKeys,
		RelaxedSpecial: t.relaxedSpecial,
	})
}

// Get reads a single key.
func (t *Tx) Get(key []byte) ([]byte, error) {
	if err := t.authorize(key, nil, false); err != nil {
		return nil, err
	}
	return t.inner.Get(key)
}

// Set writes a single key.
func (t *Tx) Set(key, value []byte) error {
	if err := t.authorize(key, nil, true); err != nil {
		return err
	}
	return t.inner.Set(key, value)
}

// Delete removes a single key.
func (t *Tx) Delete(key []byte) error {
	if err := t.authorize(key, nil, true); err != nil {
		return err
	}
	return t.inner.Delete(key)
}

// GetRange reads keys in [begin, end), up to limit entries. limit <= 0 means
// no limit.
func (t *Tx) GetRange(begin, end []byte, limit int) ([]store.KV, error) {
	if err := t.authorize(begin, end, false); err != nil {
		return nil, err
	}
	return t.inner.GetRange(begin, end, limit)
}

// ClearRange removes every key in [begin, end).
func (t *Tx) ClearRange(begin, end []byte) error {
	if err := t.authorize(begin, end, true); err != nil {
		return err
	}
	return t.inner.ClearRange(begin, end)
}

// Commit applies the transaction's writes.
func (t *Tx) Commit() error {
	return t.inner.Commit()
}

// Discard abandons the transaction. Safe to call after Commit.
func (t *Tx) Discard() {
	t.inner.Discard()
}
