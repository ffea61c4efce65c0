// Package apitest provides support for exercising the web api end to end
// over the in-memory stores.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/mux"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus/stores/tenantmem"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usercache"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usermem"
	"github.com/jcpaschoal/tenantauth/business/sdk/hasher"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/jcpaschoal/tenantauth/foundation/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/bcrypt"
)

// Secret signs every token issued by a Test.
const Secret = "apitest-signing-secret"

// Test contains functions for executing an api test. OtherUserBus writes to
// the same users without going through the handler's cache, the way another
// replica or the admin tool would.
type Test struct {
	Handler      http.Handler
	Auth         *auth.Auth
	TenantBus    *tenantbus.Core
	UserBus      *userbus.Core
	OtherUserBus *userbus.Core
	Tenants      *tenantmem.Store
	Users        *usermem.Store
}

// New constructs a Test with the routes bound over empty in-memory stores.
// The log output is printed only when the test fails.
func New(t *testing.T, routes mux.RouteAdder) *Test {
	t.Helper()

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "TEST", otel.GetTraceID)

	t.Cleanup(func() {
		if t.Failed() {
			fmt.Printf("******************** LOGS (%s) ********************\n\n", t.Name())
			fmt.Print(buf.String())
			fmt.Printf("******************** LOGS (%s) ********************\n", t.Name())
		}
	})

	a, err := auth.New(auth.Config{
		Log:    log,
		Secret: Secret,
		Issuer: "tenantauth",
	})
	if err != nil {
		t.Fatalf("auth.New() error: %v", err)
	}

	tenants := tenantmem.NewStore()
	users := usermem.NewStore()

	tenantBus := tenantbus.NewCore(log, tenants)
	hsh := hasher.New(bcrypt.MinCost)
	userBus := userbus.NewCore(log, hsh, usercache.NewStore(log, users, time.Minute))

	cfg := mux.Config{
		Build:    "test",
		Log:      log,
		Beginner: memdb.NewBeginner(),
		Tracer:   noop.NewTracerProvider().Tracer("apitest"),
		BusConfig: mux.BusConfig{
			TenantBus: tenantBus,
			UserBus:   userBus,
		},
		AuthConfig: mux.AuthConfig{
			Auth: a,
		},
	}

	return &Test{
		Handler:      mux.WebAPI(cfg, routes),
		Auth:         a,
		TenantBus:    tenantBus,
		UserBus:      userBus,
		OtherUserBus: userbus.NewCore(log, hsh, users),
		Tenants:      tenants,
		Users:        users,
	}
}

// RequestOption changes an outgoing request.
type RequestOption func(r *http.Request)

// WithBearer sends the token in the Authorization header.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithCookie attaches the cookie to the request.
func WithCookie(c *http.Cookie) RequestOption {
	return func(r *http.Request) {
		r.AddCookie(c)
	}
}

// Do sends the request through the handler. A non-nil body is sent as JSON.
func (at *Test) Do(t *testing.T, method string, path string, body any, opts ...RequestOption) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			rdr = bytes.NewBufferString(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal request body: %v", err)
			}
			rdr = bytes.NewReader(data)
		}
	}

	r := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	for _, opt := range opts {
		opt(r)
	}

	w := httptest.NewRecorder()
	at.Handler.ServeHTTP(w, r)

	return w
}

// Decode unmarshals the recorded JSON body into v.
func Decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
}

// Cookie returns the named cookie set by the response, or nil.
func Cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}

	return nil
}
