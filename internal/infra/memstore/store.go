// Package memstore is an in-process store for communities and wallets with the same
// version-checked, all-or-nothing save semantics as the postgres repositories.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"savings_circle_bot/internal/domain/errs"
)

type record struct {
	version int64
	data    []byte
}

// staged is a write held by an open transaction. base is the committed version the
// write was made against, or -1 for a create.
type staged struct {
	base    int64
	version int64
	data    []byte
}

type txState struct {
	communities map[uuid.UUID]staged
	wallets     map[string]staged
}

type txKey struct{}

// Store keeps JSON snapshots so callers never share memory with stored aggregates.
type Store struct {
	mu          sync.Mutex
	communities map[uuid.UUID]record
	wallets     map[string]record
}

func New() *Store {
	return &Store{
		communities: make(map[uuid.UUID]record),
		wallets:     make(map[string]record),
	}
}

// WithinTx runs fn with a staging area in ctx. Saves made through ctx become visible
// to others only when fn returns nil and every staged base version still matches.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	tx := &txState{
		communities: make(map[uuid.UUID]staged),
		wallets:     make(map[string]staged),
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range tx.communities {
		if err := checkBase(s.communities, id, w.base); err != nil {
			return fmt.Errorf("community %s: %w", id, err)
		}
	}
	for id, w := range tx.wallets {
		if err := checkBase(s.wallets, id, w.base); err != nil {
			return fmt.Errorf("wallet %s: %w", id, err)
		}
	}
	for id, w := range tx.communities {
		s.communities[id] = record{version: w.version, data: w.data}
	}
	for id, w := range tx.wallets {
		s.wallets[id] = record{version: w.version, data: w.data}
	}
	return nil
}

func checkBase[K comparable](committed map[K]record, id K, base int64) error {
	cur, ok := committed[id]
	switch {
	case base < 0 && ok:
		return errs.ErrVersionConflict
	case base >= 0 && (!ok || cur.version != base):
		return errs.ErrVersionConflict
	}
	return nil
}

func txFrom(ctx context.Context) *txState {
	tx, _ := ctx.Value(txKey{}).(*txState)
	return tx
}

// put writes data at expected+1, staging it when a transaction is open.
func put[K comparable](ctx context.Context, s *Store, committed map[K]record, pending func(*txState) map[K]staged, id K, expected int64, create bool, data []byte) error {
	base := expected
	if create {
		base = -1
	}
	next := expected + 1

	if tx := txFrom(ctx); tx != nil {
		area := pending(tx)
		if prev, ok := area[id]; ok {
			if create || prev.version != expected {
				return errs.ErrVersionConflict
			}
			area[id] = staged{base: prev.base, version: next, data: data}
			return nil
		}
		s.mu.Lock()
		err := checkBase(committed, id, base)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		area[id] = staged{base: base, version: next, data: data}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkBase(committed, id, base); err != nil {
		return err
	}
	committed[id] = record{version: next, data: data}
	return nil
}

// get returns the newest visible snapshot of id.
func get[K comparable](ctx context.Context, s *Store, committed map[K]record, pending func(*txState) map[K]staged, id K) ([]byte, bool) {
	if tx := txFrom(ctx); tx != nil {
		if w, ok := pending(tx)[id]; ok {
			return w.data, true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := committed[id]
	return r.data, ok
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	return nil
}
