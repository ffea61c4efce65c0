// Package tenantmem provides an in-memory implementation of tenantbus.Storer
// for testing and lightweight deployments. Tenants are lost when the process
// restarts.
package tenantmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/business/types/slug"
)

var _ tenantbus.Storer = (*Store)(nil)

type data struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]tenantbus.Tenant
}

// Store is an in-memory tenant store.
type Store struct {
	data *data
	tx   *memdb.Tx
}

// NewStore constructs an empty in-memory tenant store.
func NewStore() *Store {
	return &Store{
		data: &data{
			tenants: make(map[uuid.UUID]tenantbus.Tenant),
		},
	}
}

// NewWithTx returns a store sharing the same data whose writes are undone if
// the transaction rolls back.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (tenantbus.Storer, error) {
	mtx, err := memdb.GetTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		data: s.data,
		tx:   mtx,
	}, nil
}

// Create stores a new tenant. The slug must be unused.
func (s *Store) Create(ctx context.Context, t tenantbus.Tenant) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, existing := range s.data.tenants {
		if existing.Slug.Equal(t.Slug) {
			return fmt.Errorf("create: %w", tenantbus.ErrUniqueSlug)
		}
	}

	s.data.tenants[t.ID] = t

	if s.tx != nil {
		s.tx.OnRollback(func() {
			s.data.mu.Lock()
			defer s.data.mu.Unlock()
			delete(s.data.tenants, t.ID)
		})
	}

	return nil
}

// QueryByID returns the tenant with the specified id.
func (s *Store) QueryByID(ctx context.Context, tenantID uuid.UUID) (tenantbus.Tenant, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	t, exists := s.data.tenants[tenantID]
	if !exists {
		return tenantbus.Tenant{}, tenantbus.ErrNotFound
	}

	return t, nil
}

// QueryBySlug returns the tenant owning the slug.
func (s *Store) QueryBySlug(ctx context.Context, slg slug.Slug) (tenantbus.Tenant, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	for _, t := range s.data.tenants {
		if t.Slug.Equal(slg) {
			return t, nil
		}
	}

	return tenantbus.Tenant{}, tenantbus.ErrNotFound
}

// Len reports how many tenants are stored.
func (s *Store) Len() int {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	return len(s.data.tenants)
}
