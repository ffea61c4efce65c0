// Package usercache contains user related CRUD functionality with caching.
package usercache

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/order"
	"github.com/jcpaschoal/tenantauth/business/sdk/page"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/viccon/sturdyc"
)

// Cache sizing.
const (
	capacity           = 10_000
	numShards          = 10
	evictionPercentage = 10
)

// Store implements userbus.Storer with a read-through cache on user id.
// Lookups by email always go to the database so the active flag seen at
// login is authoritative.
type Store struct {
	log    *logger.Logger
	storer userbus.Storer
	cache  *sturdyc.Client[userbus.User]
}

// NewStore constructs the api for data and caching access.
func NewStore(log *logger.Logger, storer userbus.Storer, ttl time.Duration) *Store {
	return &Store{
		log:    log,
		storer: storer,
		cache:  sturdyc.New[userbus.User](capacity, numShards, ttl, evictionPercentage),
	}
}

// NewWithTx constructs a new Store value replacing the storer with one bound
// to the transaction. The cache is shared.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (userbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:    s.log,
		storer: storer,
		cache:  s.cache,
	}, nil
}

// Uncached returns the storer behind the cache.
func (s *Store) Uncached() userbus.Storer {
	return s.storer
}

// Create inserts a new user into the database.
func (s *Store) Create(ctx context.Context, usr userbus.User) error {
	return s.storer.Create(ctx, usr)
}

// Update replaces a user document in the database and drops the cached copy.
func (s *Store) Update(ctx context.Context, usr userbus.User) error {
	defer s.cache.Delete(usr.ID.String())

	return s.storer.Update(ctx, usr)
}

// UpdateLastLogin stamps the login time and drops the cached copy.
func (s *Store) UpdateLastLogin(ctx context.Context, userID uuid.UUID, when time.Time) error {
	defer s.cache.Delete(userID.String())

	return s.storer.UpdateLastLogin(ctx, userID, when)
}

// Query retrieves a list of existing users from the database.
func (s *Store) Query(ctx context.Context, filter userbus.QueryFilter, orderBy order.By, page page.Page) ([]userbus.User, error) {
	return s.storer.Query(ctx, filter, orderBy, page)
}

// Count returns the total number of users in the DB.
func (s *Store) Count(ctx context.Context, filter userbus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, filter)
}

// QueryByID gets the specified user from the cache or the database.
func (s *Store) QueryByID(ctx context.Context, userID uuid.UUID) (userbus.User, error) {
	return s.cache.GetOrFetch(ctx, userID.String(), func(ctx context.Context) (userbus.User, error) {
		return s.storer.QueryByID(ctx, userID)
	})
}

// QueryByEmail gets the specified user from the database by email.
func (s *Store) QueryByEmail(ctx context.Context, email mail.Address) (userbus.User, error) {
	return s.storer.QueryByEmail(ctx, email)
}
