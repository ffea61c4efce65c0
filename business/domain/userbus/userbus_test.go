package userbus_test

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usercache"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usermem"
	"github.com/jcpaschoal/tenantauth/business/sdk/hasher"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/order"
	"github.com/jcpaschoal/tenantauth/business/sdk/page"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/password"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"golang.org/x/crypto/bcrypt"
)

// countingHasher records how many comparisons ran so tests can check that
// every login path pays for one.
type countingHasher struct {
	hasher.Bcrypt
	compares int
}

func (h *countingHasher) Compare(plaintext string, hash []byte) bool {
	h.compares++
	return h.Bcrypt.Compare(plaintext, hash)
}

func newCore(t *testing.T) (*userbus.Core, *usermem.Store, *countingHasher) {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
	h := &countingHasher{Bcrypt: hasher.New(bcrypt.MinCost)}
	store := usermem.NewStore()

	return userbus.NewCore(log, h, store), store, h
}

func newUser(tenantID uuid.UUID, email string, r role.Role) userbus.NewUser {
	return userbus.NewUser{
		TenantID: tenantID,
		Name:     name.MustParse("Ann"),
		Email:    mail.Address{Address: email},
		Role:     r,
		Password: password.MustParse("password123"),
	}
}

func TestCreateHashesPassword(t *testing.T) {
	core, _, _ := newCore(t)
	ctx := context.Background()

	usr, err := core.Create(ctx, newUser(uuid.New(), "a@b.com", role.Admin))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if !usr.Active {
		t.Error("new user is not active")
	}
	if string(usr.PasswordHash) == "password123" {
		t.Error("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte("password123")) != nil {
		t.Error("stored hash does not match the password")
	}

	got, err := core.QueryByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByID() error: %v", err)
	}

	if diff := cmp.Diff(usr, got); diff != "" {
		t.Errorf("QueryByID() mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	core, _, _ := newCore(t)
	ctx := context.Background()

	if _, err := core.Create(ctx, newUser(uuid.New(), "a@b.com", role.Admin)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	_, err := core.Create(ctx, newUser(uuid.New(), "A@B.com", role.Member))
	if !errors.Is(err, userbus.ErrUniqueEmail) {
		t.Fatalf("Create() duplicate = %v, want ErrUniqueEmail", err)
	}
}

func TestAuthenticate(t *testing.T) {
	core, _, h := newCore(t)
	ctx := context.Background()

	usr, err := core.Create(ctx, newUser(uuid.New(), "a@b.com", role.Admin))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	inactive, err := core.Create(ctx, newUser(uuid.New(), "off@b.com", role.Member))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	off := false
	if _, err := core.Update(ctx, inactive, userbus.UpdateUser{Active: &off}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := core.Authenticate(ctx, mail.Address{Address: "a@b.com"}, "password123")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if got.ID != usr.ID {
		t.Errorf("Authenticate() id = %s, want %s", got.ID, usr.ID)
	}

	failures := []struct {
		name  string
		email string
		pass  string
	}{
		{name: "wrong password", email: "a@b.com", pass: "password124"},
		{name: "unknown email", email: "nobody@b.com", pass: "password123"},
		{name: "inactive user", email: "off@b.com", pass: "password123"},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			before := h.compares

			_, err := core.Authenticate(ctx, mail.Address{Address: tt.email}, tt.pass)
			if !errors.Is(err, userbus.ErrAuthenticationFailure) {
				t.Fatalf("Authenticate() = %v, want ErrAuthenticationFailure", err)
			}
			if err.Error() != userbus.ErrAuthenticationFailure.Error() {
				t.Errorf("Authenticate() leaks detail: %q", err)
			}
			if h.compares != before+1 {
				t.Errorf("Authenticate() ran %d comparisons, want 1", h.compares-before)
			}
		})
	}
}

func TestTouchLastLogin(t *testing.T) {
	core, _, _ := newCore(t)
	ctx := context.Background()

	usr, err := core.Create(ctx, newUser(uuid.New(), "a@b.com", role.Admin))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if usr.LastLogin != nil {
		t.Fatal("new user already has a last login")
	}

	usr, err = core.TouchLastLogin(ctx, usr)
	if err != nil {
		t.Fatalf("TouchLastLogin() error: %v", err)
	}

	got, err := core.QueryByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByID() error: %v", err)
	}

	if got.LastLogin == nil || !got.LastLogin.Equal(*usr.LastLogin) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, usr.LastLogin)
	}

	if _, err := core.TouchLastLogin(ctx, userbus.User{ID: uuid.New()}); !errors.Is(err, userbus.ErrNotFound) {
		t.Errorf("TouchLastLogin(unknown) = %v, want ErrNotFound", err)
	}
}

func TestQueryIsTenantScoped(t *testing.T) {
	core, _, _ := newCore(t)
	ctx := context.Background()

	tenantA, tenantB := uuid.New(), uuid.New()

	for _, email := range []string{"a1@a.com", "a2@a.com", "a3@a.com"} {
		if _, err := core.Create(ctx, newUser(tenantA, email, role.Member)); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if _, err := core.Create(ctx, newUser(tenantB, "b1@b.com", role.Member)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	filter := userbus.QueryFilter{TenantID: &tenantA}
	orderBy := order.NewBy(userbus.OrderByEmail, order.DESC)

	usrs, err := core.Query(ctx, filter, orderBy, page.MustParse("1", "2"))
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	var got []string
	for _, usr := range usrs {
		got = append(got, usr.Email.Address)
	}

	if diff := cmp.Diff([]string{"a3@a.com", "a2@a.com"}, got); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}

	total, err := core.Count(ctx, filter)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if total != 3 {
		t.Errorf("Count() = %d, want 3", total)
	}
}

func TestNewWithTxRollback(t *testing.T) {
	core, store, _ := newCore(t)
	ctx := context.Background()

	tx, err := memdb.NewBeginner().Begin()
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	txCore, err := core.NewWithTx(tx)
	if err != nil {
		t.Fatalf("NewWithTx() error: %v", err)
	}

	if _, err := txCore.Create(ctx, newUser(uuid.New(), "a@b.com", role.Admin)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	if n := store.Len(); n != 0 {
		t.Errorf("store has %d users after rollback, want 0", n)
	}
}

func TestUpdateAppliesToStoredUser(t *testing.T) {
	core, store, h := newCore(t)
	ctx := context.Background()

	log := logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
	cached := userbus.NewCore(log, h, usercache.NewStore(log, store, time.Minute))

	usr, err := cached.Create(ctx, newUser(uuid.New(), "a@b.com", role.Member))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	stale, err := cached.QueryByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByID() error: %v", err)
	}

	off := false
	if _, err := core.Update(ctx, usr, userbus.UpdateUser{Active: &off}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	n := name.MustParse("Renamed")
	got, err := cached.Update(ctx, stale, userbus.UpdateUser{Name: &n})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if got.Active || got.Name != n {
		t.Errorf("Update() = active %v name %q, want inactive and renamed", got.Active, got.Name)
	}

	if _, err := cached.Authenticate(ctx, mail.Address{Address: "a@b.com"}, "password123"); !errors.Is(err, userbus.ErrAuthenticationFailure) {
		t.Errorf("Authenticate() = %v, want ErrAuthenticationFailure", err)
	}

	if _, err := cached.Update(ctx, userbus.User{ID: uuid.New()}, userbus.UpdateUser{Name: &n}); !errors.Is(err, userbus.ErrNotFound) {
		t.Errorf("Update() unknown user = %v, want ErrNotFound", err)
	}
}
