package mid

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
)

// Messages returned by the authentication gate.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Authenticate valida o token JWT da requisição. O cookie "token" tem
// precedência sobre o header Authorization: Bearer.
func Authenticate(a *auth.Auth) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			token := extractToken(r)
			if token == "" {
				return errs.New(errs.Unauthenticated, ErrAuthRequired)
			}

			claims, err := a.Authenticate(ctx, token)
			if err != nil {
				return errs.New(errs.Unauthenticated, ErrInvalidToken)
			}

			ctx = setClaims(ctx, claims)
			ctx = setUserID(ctx, claims.UserID())
			ctx = setTenantID(ctx, claims.TenantUUID())

			return next(ctx, r)
		}

		return h
	}

	return m
}

func extractToken(r *http.Request) string {
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
