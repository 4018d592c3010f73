// Package memstore is an in-memory record store for local development and
// tests. It implements the store interfaces of catalog, account, order and
// billing with the same conditional semantics as the MongoDB store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/order"
)

type txKey struct{}

type entry[T any] struct {
	v   T
	rev uint64
}

type state struct {
	products map[string]entry[catalog.Product]
	users    map[string]entry[account.User]
	orders   map[string]entry[order.Order]
	subs     map[string]entry[billing.Subscription]
}

// Store keeps all records in maps guarded by a mutex. Values are copied in
// and out, so callers never share memory with the store.
type Store struct {
	tx  sync.Mutex
	mu  sync.RWMutex
	rev uint64
	now func() time.Time
	state
}

var (
	_ catalog.Store = (*Store)(nil)
	_ account.Store = (*Store)(nil)
	_ order.Store   = (*Store)(nil)
	_ billing.Store = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now: time.Now,
		state: state{
			products: make(map[string]entry[catalog.Product]),
			users:    make(map[string]entry[account.User]),
			orders:   make(map[string]entry[order.Order]),
			subs:     make(map[string]entry[billing.Subscription]),
		},
	}
}

// RunInTx runs fn with exclusive write access and restores every record if
// fn fails. Calls nested inside fn join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.tx.Lock()
	defer s.tx.Unlock()

	s.mu.RLock()
	snapshot, rev := s.state.clone(), s.rev
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.mu.Lock()
		s.state, s.rev = snapshot, rev
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the write lock. Outside a transaction it also waits
// for running transactions, so a rollback never discards its changes.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if ctx.Value(txKey{}) == nil {
		s.tx.Lock()
		defer s.tx.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) nextRev() uint64 {
	s.rev++
	return s.rev
}

func (st state) clone() state {
	return state{
		products: cloneMap(st.products, func(p catalog.Product) catalog.Product { return p }),
		users:    cloneMap(st.users, cloneUser),
		orders:   cloneMap(st.orders, cloneOrder),
		subs:     cloneMap(st.subs, cloneSubscription),
	}
}

func cloneMap[T any](m map[string]entry[T], cp func(T) T) map[string]entry[T] {
	out := make(map[string]entry[T], len(m))
	for k, e := range m {
		out[k] = entry[T]{v: cp(e.v), rev: e.rev}
	}
	return out
}

func newID() string {
	return uuid.NewString()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
