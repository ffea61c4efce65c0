// Package usermem provides an in-memory implementation of userbus.Storer for
// testing and lightweight deployments. Users are lost when the process
// restarts.
package usermem

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/order"
	"github.com/jcpaschoal/tenantauth/business/sdk/page"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
)

var _ userbus.Storer = (*Store)(nil)

type data struct {
	mu    sync.RWMutex
	users map[uuid.UUID]userbus.User
}

// Store is an in-memory user store.
type Store struct {
	data *data
	tx   *memdb.Tx
}

// NewStore constructs an empty in-memory user store.
func NewStore() *Store {
	return &Store{
		data: &data{
			users: make(map[uuid.UUID]userbus.User),
		},
	}
}

// NewWithTx returns a store sharing the same data whose writes are undone if
// the transaction rolls back.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (userbus.Storer, error) {
	mtx, err := memdb.GetTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		data: s.data,
		tx:   mtx,
	}, nil
}

// Create stores a new user. The email must be unused system wide.
func (s *Store) Create(ctx context.Context, usr userbus.User) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, existing := range s.data.users {
		if strings.EqualFold(existing.Email.Address, usr.Email.Address) {
			return fmt.Errorf("create: %w", userbus.ErrUniqueEmail)
		}
	}

	s.data.users[usr.ID] = usr

	s.onRollback(func() {
		delete(s.data.users, usr.ID)
	})

	return nil
}

// Update replaces the stored user.
func (s *Store) Update(ctx context.Context, usr userbus.User) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	prev, exists := s.data.users[usr.ID]
	if !exists {
		return fmt.Errorf("update: %w", userbus.ErrNotFound)
	}

	usr.Email = prev.Email
	usr.TenantID = prev.TenantID
	usr.LastLogin = prev.LastLogin
	s.data.users[usr.ID] = usr

	s.onRollback(func() {
		s.data.users[usr.ID] = prev
	})

	return nil
}

// UpdateLastLogin stamps the last successful login of the user.
func (s *Store) UpdateLastLogin(ctx context.Context, userID uuid.UUID, when time.Time) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	prev, exists := s.data.users[userID]
	if !exists {
		return fmt.Errorf("update: %w", userbus.ErrNotFound)
	}

	usr := prev
	usr.LastLogin = &when
	s.data.users[userID] = usr

	s.onRollback(func() {
		s.data.users[userID] = prev
	})

	return nil
}

// Query retrieves a filtered, ordered page of users.
func (s *Store) Query(ctx context.Context, filter userbus.QueryFilter, orderBy order.By, pg page.Page) ([]userbus.User, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	usrs := s.filter(filter)

	less, err := lessFunc(orderBy)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(usrs, func(i, j int) bool {
		return less(usrs[i], usrs[j])
	})

	start := pg.Offset()
	if start >= len(usrs) {
		return nil, nil
	}

	end := min(start+pg.RowsPerPage(), len(usrs))

	return usrs[start:end], nil
}

// Count returns the number of users matching the filter.
func (s *Store) Count(ctx context.Context, filter userbus.QueryFilter) (int, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	return len(s.filter(filter)), nil
}

// QueryByID returns the user with the specified id.
func (s *Store) QueryByID(ctx context.Context, userID uuid.UUID) (userbus.User, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	usr, exists := s.data.users[userID]
	if !exists {
		return userbus.User{}, userbus.ErrNotFound
	}

	return usr, nil
}

// QueryByEmail returns the user with the specified email.
func (s *Store) QueryByEmail(ctx context.Context, email mail.Address) (userbus.User, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	for _, usr := range s.data.users {
		if strings.EqualFold(usr.Email.Address, email.Address) {
			return usr, nil
		}
	}

	return userbus.User{}, userbus.ErrNotFound
}

// Len reports how many users are stored.
func (s *Store) Len() int {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	return len(s.data.users)
}

// onRollback must be called with the write lock held; fn runs under it again
// when the transaction rolls back.
func (s *Store) onRollback(fn func()) {
	if s.tx == nil {
		return
	}

	s.tx.OnRollback(func() {
		s.data.mu.Lock()
		defer s.data.mu.Unlock()
		fn()
	})
}

func (s *Store) filter(filter userbus.QueryFilter) []userbus.User {
	var usrs []userbus.User

	for _, usr := range s.data.users {
		switch {
		case filter.TenantID != nil && usr.TenantID != *filter.TenantID:
			continue
		case filter.ID != nil && usr.ID != *filter.ID:
			continue
		case filter.Name != nil && !strings.Contains(strings.ToLower(usr.Name.String()), strings.ToLower(filter.Name.String())):
			continue
		case filter.Email != nil && !strings.EqualFold(usr.Email.Address, filter.Email.Address):
			continue
		case filter.Role != nil && !usr.Role.Equal(*filter.Role):
			continue
		case filter.Active != nil && usr.Active != *filter.Active:
			continue
		case filter.StartCreatedAt != nil && usr.CreatedAt.Before(*filter.StartCreatedAt):
			continue
		case filter.EndCreatedAt != nil && usr.CreatedAt.After(*filter.EndCreatedAt):
			continue
		}

		usrs = append(usrs, usr)
	}

	return usrs
}

func lessFunc(orderBy order.By) (func(a, b userbus.User) bool, error) {
	var less func(a, b userbus.User) bool

	switch orderBy.Field {
	case userbus.OrderByID:
		less = func(a, b userbus.User) bool { return a.ID.String() < b.ID.String() }
	case userbus.OrderByName:
		less = func(a, b userbus.User) bool { return a.Name.String() < b.Name.String() }
	case userbus.OrderByEmail:
		less = func(a, b userbus.User) bool { return a.Email.Address < b.Email.Address }
	case userbus.OrderByRole:
		less = func(a, b userbus.User) bool { return a.Role.String() < b.Role.String() }
	case userbus.OrderByActive:
		less = func(a, b userbus.User) bool { return !a.Active && b.Active }
	case userbus.OrderByCreatedAt:
		less = func(a, b userbus.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return nil, fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	if orderBy.Direction == order.DESC {
		return func(a, b userbus.User) bool { return less(b, a) }, nil
	}

	return less, nil
}
