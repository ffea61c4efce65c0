package all_test

import (
	"net/http"
	"testing"

	"github.com/jcpaschoal/tenantauth/api/cmd/build/all"
	"github.com/jcpaschoal/tenantauth/app/domain/authapp"
	"github.com/jcpaschoal/tenantauth/app/domain/userapp"
	"github.com/jcpaschoal/tenantauth/app/sdk/apitest"
	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
)

// Test_Scenario walks a tenant from registration through the role gate.
func Test_Scenario(t *testing.T) {
	at := apitest.New(t, all.Routes())

	// Register opens the tenant with its admin.
	w := at.Do(t, http.MethodPost, "/v1/auth/register", authapp.Register{
		Email:      "a@x.io",
		Password:   "password1",
		Name:       "Ann",
		TenantName: "X Co",
		TenantSlug: "x-co",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}

	var reg authapp.Session
	apitest.Decode(t, w, &reg)

	if reg.User.Role != "ADMIN" || reg.Tenant.Slug != "x-co" {
		t.Fatalf("register: got %+v", reg)
	}

	// Login with the same credentials.
	w = at.Do(t, http.MethodPost, "/v1/auth/login", authapp.Login{Email: "a@x.io", Password: "password1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}

	var login authapp.Session
	apitest.Decode(t, w, &login)

	cookie := apitest.Cookie(w, auth.CookieName)
	if cookie == nil {
		t.Fatal("login: no cookie")
	}

	// Me through the cookie the login set.
	w = at.Do(t, http.MethodGet, "/v1/auth/me", nil, apitest.WithCookie(cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}

	var me authapp.Profile
	apitest.Decode(t, w, &me)

	if me.User.ID != reg.User.ID || me.Tenant.ID != reg.Tenant.ID {
		t.Errorf("me: got %+v", me)
	}

	// Me without a token.
	w = at.Do(t, http.MethodGet, "/v1/auth/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me without token: status %d, want 401", w.Code)
	}

	// The admin invites a member.
	w = at.Do(t, http.MethodPost, "/v1/users", userapp.NewUser{
		Name:     "Mo",
		Email:    "m@x.io",
		Role:     "MEMBER",
		Password: "password2",
	}, apitest.WithBearer(login.Token))
	if w.Code != http.StatusOK {
		t.Fatalf("invite: status %d body %s", w.Code, w.Body.String())
	}

	w = at.Do(t, http.MethodPost, "/v1/auth/login", authapp.Login{Email: "m@x.io", Password: "password2"})
	if w.Code != http.StatusOK {
		t.Fatalf("member login: status %d body %s", w.Code, w.Body.String())
	}

	var member authapp.Session
	apitest.Decode(t, w, &member)

	if member.Tenant.ID != reg.Tenant.ID || member.User.Role != "MEMBER" {
		t.Errorf("member login: got %+v", member)
	}

	// The member is turned away from the admin-only route.
	w = at.Do(t, http.MethodGet, "/v1/users", nil, apitest.WithBearer(member.Token))
	if w.Code != http.StatusForbidden {
		t.Errorf("member on admin route: status %d, want 403", w.Code)
	}

	w = at.Do(t, http.MethodGet, "/v1/users", nil, apitest.WithBearer(login.Token))
	if w.Code != http.StatusOK {
		t.Errorf("admin on admin route: status %d, want 200", w.Code)
	}

	// Logout clears the cookie.
	w = at.Do(t, http.MethodPost, "/v1/auth/logout", nil, apitest.WithCookie(cookie))
	if c := apitest.Cookie(w, auth.CookieName); w.Code != http.StatusOK || c == nil || c.MaxAge >= 0 {
		t.Errorf("logout: status %d cookie %+v", w.Code, c)
	}
}

func Test_Health(t *testing.T) {
	at := apitest.New(t, all.Routes())

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		w := at.Do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, w.Code)
		}
	}
}
