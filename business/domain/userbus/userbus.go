// Package userbus provides business access to user domain.
package userbus

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/sdk/order"
	"github.com/jcpaschoal/tenantauth/business/sdk/page"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/jcpaschoal/tenantauth/foundation/otel"
)

// Set of error variables for CRUD operations.
var (
	ErrNotFound              = errors.New("user not found")
	ErrUniqueEmail           = errors.New("email is not unique")
	ErrAuthenticationFailure = errors.New("authentication failed")
)

// Storer interface declares the behavior this package needs to persist and
// retrieve data.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Create(ctx context.Context, usr User) error
	Update(ctx context.Context, usr User) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, when time.Time) error
	Query(ctx context.Context, filter QueryFilter, orderBy order.By, page page.Page) ([]User, error)
	Count(ctx context.Context, filter QueryFilter) (int, error)
	QueryByID(ctx context.Context, userID uuid.UUID) (User, error)
	QueryByEmail(ctx context.Context, email mail.Address) (User, error)
}

// Uncacher is implemented by storers that serve reads from a cache in front
// of another storer.
type Uncacher interface {
	Uncached() Storer
}

// Hasher turns plaintext passwords into stored hashes and checks them.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(plaintext string, hash []byte) bool
}

// Core manages the set of APIs for user access.
type Core struct {
	log    *logger.Logger
	storer Storer
	hasher Hasher
	dummy  func() []byte
}

// NewCore constructs a core for user api access.
func NewCore(log *logger.Logger, hasher Hasher, storer Storer) *Core {
	dummy := sync.OnceValue(func() []byte {
		hash, err := hasher.Hash("not-a-real-password")
		if err != nil {
			log.Error(context.Background(), "userbus: dummy hash", "ERROR", err)
		}
		return hash
	})

	return &Core{
		log:    log,
		storer: storer,
		hasher: hasher,
		dummy:  dummy,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Core{
		log:    c.log,
		storer: storer,
		hasher: c.hasher,
		dummy:  c.dummy,
	}, nil
}

// Create adds a new user to the system.
func (c *Core) Create(ctx context.Context, nu NewUser) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.create")
	defer span.End()

	hash, err := c.hasher.Hash(nu.Password.String())
	if err != nil {
		return User{}, fmt.Errorf("hash: %w", err)
	}

	now := time.Now()

	usr := User{
		ID:           uuid.New(),
		TenantID:     nu.TenantID,
		Name:         nu.Name,
		Email:        nu.Email,
		Role:         nu.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.storer.Create(ctx, usr); err != nil {
		return User{}, fmt.Errorf("create: %w", err)
	}

	return usr, nil
}

// Update modifies information about a user. The changes are applied to the
// stored row, not to usr, so fields written elsewhere since usr was read are
// kept.
func (c *Core) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.update")
	defer span.End()

	usr, err := c.Reload(ctx, usr.ID)
	if err != nil {
		return User{}, err
	}

	if uu.Name != nil {
		usr.Name = *uu.Name
	}

	if uu.Role != nil {
		usr.Role = *uu.Role
	}

	if uu.Password != nil {
		hash, err := c.hasher.Hash(uu.Password.String())
		if err != nil {
			return User{}, fmt.Errorf("hash: %w", err)
		}
		usr.PasswordHash = hash
	}

	if uu.Active != nil {
		usr.Active = *uu.Active
	}

	usr.UpdatedAt = time.Now()

	if err := c.storer.Update(ctx, usr); err != nil {
		return User{}, fmt.Errorf("update: %w", err)
	}

	return usr, nil
}

// TouchLastLogin records a successful login for the user.
func (c *Core) TouchLastLogin(ctx context.Context, usr User) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.touchLastLogin")
	defer span.End()

	now := time.Now()

	if err := c.storer.UpdateLastLogin(ctx, usr.ID, now); err != nil {
		return usr, fmt.Errorf("updatelastlogin: userID[%s]: %w", usr.ID, err)
	}

	usr.LastLogin = &now

	return usr, nil
}

// Query retrieves a list of existing users.
func (c *Core) Query(ctx context.Context, filter QueryFilter, orderBy order.By, page page.Page) ([]User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.query")
	defer span.End()

	users, err := c.storer.Query(ctx, filter, orderBy, page)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return users, nil
}

// Count returns the total number of users.
func (c *Core) Count(ctx context.Context, filter QueryFilter) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.count")
	defer span.End()

	return c.storer.Count(ctx, filter)
}

// QueryByID finds the user by the specified ID.
func (c *Core) QueryByID(ctx context.Context, userID uuid.UUID) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.queryByID")
	defer span.End()

	user, err := c.storer.QueryByID(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("query: userID[%s]: %w", userID, err)
	}

	return user, nil
}

// Reload reads the user from the system of record, skipping any cache.
func (c *Core) Reload(ctx context.Context, userID uuid.UUID) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.reload")
	defer span.End()

	user, err := c.source().QueryByID(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("reload: userID[%s]: %w", userID, err)
	}

	return user, nil
}

// QueryByEmail finds the user by a specified user email.
func (c *Core) QueryByEmail(ctx context.Context, email mail.Address) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.queryByEmail")
	defer span.End()

	user, err := c.storer.QueryByEmail(ctx, email)
	if err != nil {
		return User{}, fmt.Errorf("query: email[%s]: %w", email.Address, err)
	}

	return user, nil
}

// Authenticate finds an active user by their email and verifies their
// password. Unknown emails, inactive users and wrong passwords all fail with
// ErrAuthenticationFailure, and a hash comparison runs in every case.
func (c *Core) Authenticate(ctx context.Context, email mail.Address, password string) (User, error) {
	ctx, span := otel.AddSpan(ctx, "business.userbus.authenticate")
	defer span.End()

	usr, err := c.storer.QueryByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.hasher.Compare(password, c.dummy())
			return User{}, ErrAuthenticationFailure
		}
		return User{}, fmt.Errorf("query: email[%s]: %w", email.Address, err)
	}

	match := c.hasher.Compare(password, usr.PasswordHash)

	if !usr.Active || !match {
		return User{}, ErrAuthenticationFailure
	}

	return usr, nil
}

func (c *Core) source() Storer {
	if u, ok := c.storer.(Uncacher); ok {
		return u.Uncached()
	}

	return c.storer
}
