package authapp_test

import (
	"context"
	"net/http"
	"net/mail"
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/api/cmd/build/all"
	"github.com/jcpaschoal/tenantauth/app/domain/authapp"
	"github.com/jcpaschoal/tenantauth/app/sdk/apitest"
	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/password"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/business/types/slug"
)

type errResp struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func newRegister(slg string, email string) authapp.Register {
	return authapp.Register{
		Email:      email,
		Password:   "correct-horse",
		Name:       "Ada Lovelace",
		TenantName: "Acme Inc",
		TenantSlug: slg,
	}
}

func register(t *testing.T, at *apitest.Test, slg string, email string) authapp.Session {
	t.Helper()

	w := at.Do(t, http.MethodPost, "/v1/auth/register", newRegister(slg, email))
	if w.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}

	var s authapp.Session
	apitest.Decode(t, w, &s)

	return s
}

func wantError(t *testing.T, status int, gotStatus int, got errResp, code string, msg string) {
	t.Helper()

	if gotStatus != status {
		t.Errorf("status = %d, want %d", gotStatus, status)
	}

	if got.Code != code || got.Message != msg {
		t.Errorf("got %s %q, want %s %q", got.Code, got.Message, code, msg)
	}
}

// =============================================================================

func TestRegister(t *testing.T) {
	at := apitest.New(t, all.Routes())

	w := at.Do(t, http.MethodPost, "/v1/auth/register", newRegister("acme", "Ada@Acme.io"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var s authapp.Session
	apitest.Decode(t, w, &s)

	if s.User.Role != role.Admin.String() {
		t.Errorf("role = %q, want ADMIN", s.User.Role)
	}

	if s.User.Email != "ada@acme.io" {
		t.Errorf("email = %q, want it lowercased", s.User.Email)
	}

	if s.Tenant.Slug != "acme" || s.Tenant.Name != "Acme Inc" {
		t.Errorf("tenant = %+v", s.Tenant)
	}

	claims, err := at.Auth.Authenticate(context.Background(), s.Token)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}

	if claims.Subject != s.User.ID || claims.TenantID != s.Tenant.ID || claims.Role != "ADMIN" {
		t.Errorf("claims = %+v, want user %s tenant %s", claims, s.User.ID, s.Tenant.ID)
	}

	c := apitest.Cookie(w, auth.CookieName)
	if c == nil {
		t.Fatal("no session cookie set")
	}

	if c.Value != s.Token {
		t.Errorf("cookie value differs from body token")
	}

	if !c.HttpOnly || c.SameSite != http.SameSiteStrictMode || c.Path != "/" || c.Secure {
		t.Errorf("cookie attributes = %+v", c)
	}

	if c.MaxAge != int(auth.DefaultTTL.Seconds()) {
		t.Errorf("cookie MaxAge = %d, want %d", c.MaxAge, int(auth.DefaultTTL.Seconds()))
	}

	if at.Tenants.Len() != 1 || at.Users.Len() != 1 {
		t.Errorf("stored %d tenants %d users, want 1 and 1", at.Tenants.Len(), at.Users.Len())
	}
}

func TestRegisterConflicts(t *testing.T) {
	at := apitest.New(t, all.Routes())

	register(t, at, "acme", "ada@acme.io")

	t.Run("slug taken", func(t *testing.T) {
		w := at.Do(t, http.MethodPost, "/v1/auth/register", newRegister("acme", "grace@acme.io"))

		var got errResp
		apitest.Decode(t, w, &got)
		wantError(t, http.StatusBadRequest, w.Code, got, "conflict", authapp.ErrSlugExists.Error())
	})

	t.Run("email taken rolls back tenant", func(t *testing.T) {
		w := at.Do(t, http.MethodPost, "/v1/auth/register", newRegister("other", "ADA@acme.io"))

		var got errResp
		apitest.Decode(t, w, &got)
		wantError(t, http.StatusBadRequest, w.Code, got, "conflict", authapp.ErrEmailExists.Error())

		if _, err := at.Tenants.QueryBySlug(context.Background(), slug.MustParse("other")); err == nil {
			t.Error("tenant \"other\" persisted after the user insert failed")
		}
	})

	if at.Tenants.Len() != 1 || at.Users.Len() != 1 {
		t.Errorf("stored %d tenants %d users, want 1 and 1", at.Tenants.Len(), at.Users.Len())
	}
}

func TestRegisterValidation(t *testing.T) {
	at := apitest.New(t, all.Routes())

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{name: "bad email", body: authapp.Register{Email: "nope", Password: "correct-horse", Name: "Ada", TenantName: "Acme", TenantSlug: "acme"}, field: "email"},
		{name: "short password", body: authapp.Register{Email: "a@b.io", Password: "short", Name: "Ada", TenantName: "Acme", TenantSlug: "acme"}, field: "password"},
		{name: "short name", body: authapp.Register{Email: "a@b.io", Password: "correct-horse", Name: "A", TenantName: "Acme", TenantSlug: "acme"}, field: "name"},
		{name: "short tenant name", body: authapp.Register{Email: "a@b.io", Password: "correct-horse", Name: "Ada", TenantName: "A", TenantSlug: "acme"}, field: "tenantName"},
		{name: "uppercase slug", body: authapp.Register{Email: "a@b.io", Password: "correct-horse", Name: "Ada", TenantName: "Acme", TenantSlug: "Acme"}, field: "tenantSlug"},
		{name: "slug with space", body: authapp.Register{Email: "a@b.io", Password: "correct-horse", Name: "Ada", TenantName: "Acme", TenantSlug: "ac me"}, field: "tenantSlug"},
		{name: "one char slug", body: authapp.Register{Email: "a@b.io", Password: "correct-horse", Name: "Ada", TenantName: "Acme", TenantSlug: "a"}, field: "tenantSlug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := at.Do(t, http.MethodPost, "/v1/auth/register", tt.body)

			var got errResp
			apitest.Decode(t, w, &got)

			if w.Code != http.StatusBadRequest || got.Code != "invalid_argument" {
				t.Fatalf("got %d %s, want 400 invalid_argument", w.Code, got.Code)
			}

			if _, ok := got.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want an entry for %q", got.Fields, tt.field)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		w := at.Do(t, http.MethodPost, "/v1/auth/register", `{"email":`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	if at.Tenants.Len() != 0 || at.Users.Len() != 0 {
		t.Errorf("validation failures stored %d tenants %d users", at.Tenants.Len(), at.Users.Len())
	}
}

func TestLogin(t *testing.T) {
	at := apitest.New(t, all.Routes())

	reg := register(t, at, "acme", "ada@acme.io")

	w := at.Do(t, http.MethodPost, "/v1/auth/login", authapp.Login{Email: "ADA@acme.io", Password: "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var s authapp.Session
	apitest.Decode(t, w, &s)

	if s.User.ID != reg.User.ID || s.Tenant.ID != reg.Tenant.ID {
		t.Errorf("login returned user %s tenant %s, want %s %s", s.User.ID, s.Tenant.ID, reg.User.ID, reg.Tenant.ID)
	}

	if c := apitest.Cookie(w, auth.CookieName); c == nil || c.Value != s.Token {
		t.Errorf("login did not set the session cookie")
	}

	usr, err := at.UserBus.QueryByID(context.Background(), uuid.MustParse(reg.User.ID))
	if err != nil {
		t.Fatalf("QueryByID() error: %v", err)
	}

	if usr.LastLogin == nil {
		t.Error("last login not recorded")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	at := apitest.New(t, all.Routes())

	reg := register(t, at, "acme", "ada@acme.io")

	ctx := context.Background()

	inactive, err := at.UserBus.Create(ctx, userbus.NewUser{
		TenantID: uuid.MustParse(reg.Tenant.ID),
		Name:     name.MustParse("Grace Hopper"),
		Email:    mail.Address{Address: "grace@acme.io"},
		Role:     role.Member,
		Password: password.MustParse("correct-horse"),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	off := false
	if _, err := at.UserBus.Update(ctx, inactive, userbus.UpdateUser{Active: &off}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	attempts := []struct {
		name  string
		login authapp.Login
	}{
		{name: "wrong password", login: authapp.Login{Email: "ada@acme.io", Password: "wrong-password"}},
		{name: "unknown email", login: authapp.Login{Email: "nobody@acme.io", Password: "correct-horse"}},
		{name: "inactive user", login: authapp.Login{Email: "grace@acme.io", Password: "correct-horse"}},
	}

	var bodies []string
	for _, a := range attempts {
		t.Run(a.name, func(t *testing.T) {
			w := at.Do(t, http.MethodPost, "/v1/auth/login", a.login)

			var got errResp
			apitest.Decode(t, w, &got)
			wantError(t, http.StatusUnauthorized, w.Code, got, "unauthenticated", "invalid credentials")

			if apitest.Cookie(w, auth.CookieName) != nil {
				t.Error("failed login set a cookie")
			}

			bodies = append(bodies, w.Body.String())
		})
	}

	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("response %d = %s, differs from %s", i, bodies[i], bodies[0])
		}
	}
}

func TestLoginValidation(t *testing.T) {
	at := apitest.New(t, all.Routes())

	tests := []struct {
		name  string
		login authapp.Login
		field string
	}{
		{name: "bad email", login: authapp.Login{Email: "nope", Password: "x"}, field: "email"},
		{name: "empty password", login: authapp.Login{Email: "a@b.io"}, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := at.Do(t, http.MethodPost, "/v1/auth/login", tt.login)

			var got errResp
			apitest.Decode(t, w, &got)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}

			if _, ok := got.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want an entry for %q", got.Fields, tt.field)
			}
		})
	}
}

func TestMe(t *testing.T) {
	at := apitest.New(t, all.Routes())

	reg := register(t, at, "acme", "ada@acme.io")

	t.Run("bearer", func(t *testing.T) {
		w := at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithBearer(reg.Token))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}

		var p authapp.Profile
		apitest.Decode(t, w, &p)

		if p.User.ID != reg.User.ID || p.Tenant.Slug != "acme" {
			t.Errorf("profile = %+v", p)
		}
	})

	t.Run("cookie", func(t *testing.T) {
		w := at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithCookie(&http.Cookie{Name: auth.CookieName, Value: reg.Token}))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
	})

	t.Run("no token", func(t *testing.T) {
		w := at.Do(t, http.MethodGet, "/v1/auth/me", nil)

		var got errResp
		apitest.Decode(t, w, &got)
		wantError(t, http.StatusUnauthorized, w.Code, got, "unauthenticated", "authentication required")
	})

	t.Run("tampered token", func(t *testing.T) {
		w := at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithBearer(reg.Token+"x"))

		var got errResp
		apitest.Decode(t, w, &got)
		wantError(t, http.StatusUnauthorized, w.Code, got, "unauthenticated", "invalid or expired token")
	})

	t.Run("user vanished", func(t *testing.T) {
		token, err := at.Auth.GenerateToken(uuid.New(), uuid.MustParse(reg.Tenant.ID), "ghost@acme.io", role.Admin)
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}

		w := at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithBearer(token))

		var got errResp
		apitest.Decode(t, w, &got)
		wantError(t, http.StatusNotFound, w.Code, got, "not_found", authapp.ErrUserNotFound.Error())
	})
}

func TestMeReadsCurrentUser(t *testing.T) {
	at := apitest.New(t, all.Routes())
	ctx := context.Background()

	reg := register(t, at, "acme", "ada@acme.io")

	w := at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithBearer(reg.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	usr, err := at.OtherUserBus.QueryByID(ctx, uuid.MustParse(reg.User.ID))
	if err != nil {
		t.Fatalf("QueryByID() error: %v", err)
	}

	n := name.MustParse("Ada King")
	if _, err := at.OtherUserBus.Update(ctx, usr, userbus.UpdateUser{Name: &n}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	w = at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithBearer(reg.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var p authapp.Profile
	apitest.Decode(t, w, &p)

	if p.User.Name != "Ada King" {
		t.Errorf("name = %q, want the stored name", p.User.Name)
	}
}

func TestLogout(t *testing.T) {
	at := apitest.New(t, all.Routes())

	w := at.Do(t, http.MethodPost, "/v1/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var m authapp.Message
	apitest.Decode(t, w, &m)

	if m.Message != "Logged out successfully" {
		t.Errorf("message = %q", m.Message)
	}

	c := apitest.Cookie(w, auth.CookieName)
	if c == nil {
		t.Fatal("logout did not clear the cookie")
	}

	if c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want empty and expired", c)
	}
}
