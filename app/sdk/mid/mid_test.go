package mid

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"go.opentelemetry.io/otel/trace/noop"
)

type okResp struct{}

func (okResp) Encode() ([]byte, string, error) {
	return []byte(`{}`), "application/json", nil
}

func newTestLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

func newTestAuth(t *testing.T) *auth.Auth {
	t.Helper()

	a, err := auth.New(auth.Config{
		Log:    newTestLog(),
		Secret: "mid-test-secret",
		Issuer: "tenantauth",
	})
	if err != nil {
		t.Fatalf("auth.New() error: %v", err)
	}

	return a
}

func mustToken(t *testing.T, a *auth.Auth, r role.Role) (string, uuid.UUID, uuid.UUID) {
	t.Helper()

	userID, tenantID := uuid.New(), uuid.New()

	token, err := a.GenerateToken(userID, tenantID, "a@b.com", r)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	return token, userID, tenantID
}

func wantAppError(t *testing.T, resp web.Encoder, code errs.ErrCode, msg string) {
	t.Helper()

	appErr := errs.GetError(checkIsError(resp))
	if appErr == nil {
		t.Fatalf("got %T, want *errs.Error", resp)
	}

	if !appErr.Code.Equal(code) || appErr.Message != msg {
		t.Errorf("got %s %q, want %s %q", appErr.Code, appErr.Message, code, msg)
	}
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuth(t)
	good, userID, tenantID := mustToken(t, a, role.Member)

	var gotClaims auth.Claims
	next := func(ctx context.Context, r *http.Request) web.Encoder {
		var err error
		gotClaims, err = GetClaims(ctx)
		if err != nil {
			t.Errorf("GetClaims() error: %v", err)
		}

		if id, _ := GetUserID(ctx); id != userID {
			t.Errorf("GetUserID() = %s, want %s", id, userID)
		}
		if id, _ := GetTenantID(ctx); id != tenantID {
			t.Errorf("GetTenantID() = %s, want %s", id, tenantID)
		}

		return okResp{}
	}

	h := Authenticate(a)(next)

	tests := []struct {
		name    string
		cookie  string
		header  string
		wantErr string
	}{
		{name: "no credentials", wantErr: ErrAuthRequired.Error()},
		{name: "bearer", header: "Bearer " + good},
		{name: "lowercase scheme", header: "bearer " + good},
		{name: "cookie", cookie: good},
		{name: "cookie wins over bad bearer", cookie: good, header: "Bearer junk"},
		{name: "bad cookie checked first", cookie: "junk", header: "Bearer " + good, wantErr: ErrInvalidToken.Error()},
		{name: "invalid bearer", header: "Bearer junk", wantErr: ErrInvalidToken.Error()},
		{name: "wrong scheme", header: "Basic " + good, wantErr: ErrAuthRequired.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = auth.Claims{}

			r := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			resp := h(context.Background(), r)

			if tt.wantErr != "" {
				wantAppError(t, resp, errs.Unauthenticated, tt.wantErr)
				return
			}

			if err := checkIsError(resp); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotClaims.Subject != userID.String() {
				t.Errorf("claims subject = %q, want %q", gotClaims.Subject, userID)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	a := newTestAuth(t)

	next := func(ctx context.Context, r *http.Request) web.Encoder {
		return okResp{}
	}

	h := Authenticate(a)(Authorize(a, role.Admin)(next))

	member, _, _ := mustToken(t, a, role.Member)
	admin, _, _ := mustToken(t, a, role.Admin)

	r := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	r.Header.Set("Authorization", "Bearer "+member)
	wantAppError(t, h(context.Background(), r), errs.PermissionDenied, ErrInsufficientPermissions.Error())

	r = httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	r.Header.Set("Authorization", "Bearer "+admin)
	if err := checkIsError(h(context.Background(), r)); err != nil {
		t.Errorf("admin rejected: %v", err)
	}

	// Without Authenticate in front there are no claims.
	bare := Authorize(a, role.Admin)(next)
	wantAppError(t, bare(context.Background(), r), errs.Unauthenticated, ErrAuthRequired.Error())
}

func TestErrorsHidesInternalDetail(t *testing.T) {
	tests := []struct {
		name    string
		resp    web.Encoder
		code    errs.ErrCode
		message string
	}{
		{
			name:    "internal",
			resp:    errs.Errorf(errs.Internal, "db: connection refused on 10.0.0.1"),
			code:    errs.Internal,
			message: InternalMessage,
		},
		{
			name:    "internal only log",
			resp:    errs.Errorf(errs.InternalOnlyLog, "query: syntax error"),
			code:    errs.Internal,
			message: InternalMessage,
		},
		{
			name:    "conflict passes through",
			resp:    errs.Errorf(errs.Conflict, "tenant slug already exists"),
			code:    errs.Conflict,
			message: "tenant slug already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Errors(newTestLog())(func(ctx context.Context, r *http.Request) web.Encoder {
				return tt.resp
			})

			resp := h(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
			wantAppError(t, resp, tt.code, tt.message)
		})
	}
}

func TestPanicsRecovers(t *testing.T) {
	h := Errors(newTestLog())(Panics()(func(ctx context.Context, r *http.Request) web.Encoder {
		panic("boom")
	}))

	resp := h(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	wantAppError(t, resp, errs.Internal, InternalMessage)
}

type recordingBeginner struct {
	memdb.Beginner
	tx *memdb.Tx
}

func (b *recordingBeginner) Begin() (sqldb.CommitRollbacker, error) {
	crt, err := b.Beginner.Begin()
	if err != nil {
		return nil, err
	}

	b.tx, err = memdb.GetTx(crt)
	return crt, err
}

func TestBeginCommitRollback(t *testing.T) {
	for _, fail := range []bool{false, true} {
		bgn := &recordingBeginner{}
		undone := false

		h := BeginCommitRollback(newTestLog(), bgn)(func(ctx context.Context, r *http.Request) web.Encoder {
			tx, err := GetTran(ctx)
			if err != nil {
				t.Fatalf("GetTran() error: %v", err)
			}

			mtx, _ := memdb.GetTx(tx)
			mtx.OnRollback(func() { undone = true })

			if fail {
				return errs.New(errs.Conflict, errors.New("conflict"))
			}
			return okResp{}
		})

		h(context.Background(), httptest.NewRequest(http.MethodPost, "/", nil))

		if undone != fail {
			t.Errorf("fail=%v: rollback ran = %v", fail, undone)
		}
	}
}

type failingCommit struct {
	sqldb.CommitRollbacker
}

func (failingCommit) Commit() error {
	return errors.New("connection reset")
}

type failingCommitBeginner struct {
	memdb.Beginner
}

func (b failingCommitBeginner) Begin() (sqldb.CommitRollbacker, error) {
	tx, err := b.Beginner.Begin()
	if err != nil {
		return nil, err
	}

	return failingCommit{CommitRollbacker: tx}, nil
}

func TestBeginCommitRollbackDropsCookies(t *testing.T) {
	tests := []struct {
		name   string
		bgn    sqldb.Beginner
		fail   bool
		status int
	}{
		{name: "handler error", bgn: memdb.NewBeginner(), fail: true, status: http.StatusBadRequest},
		{name: "commit error", bgn: failingCommitBeginner{}, status: http.StatusInternalServerError},
		{name: "committed", bgn: memdb.NewBeginner(), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newTestLog()
			app := web.NewApp(log.Info, noop.NewTracerProvider().Tracer("test"), Errors(log))

			h := func(ctx context.Context, r *http.Request) web.Encoder {
				http.SetCookie(web.GetWriter(ctx), &http.Cookie{Name: "token", Value: "abc"})

				if tt.fail {
					return errs.New(errs.Conflict, errors.New("conflict"))
				}
				return okResp{}
			}

			app.HandlerFunc(http.MethodPost, "v1", "/tx", h, BeginCommitRollback(log, tt.bgn))

			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/tx", nil))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}

			got := len(w.Result().Cookies())
			want := 0
			if tt.status == http.StatusOK {
				want = 1
			}

			if got != want {
				t.Errorf("cookies = %d, want %d", got, want)
			}
		})
	}
}
