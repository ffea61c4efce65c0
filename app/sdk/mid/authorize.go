package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
	"github.com/jcpaschoal/tenantauth/business/types/role"
)

// ErrInsufficientPermissions is returned when the role gate rejects a request.
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// Authorize valida se o usuário autenticado possui uma das roles permitidas.
// Deve rodar depois de Authenticate.
func Authorize(a *auth.Auth, roles ...role.Role) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			claims, err := GetClaims(ctx)
			if err != nil {
				return errs.New(errs.Unauthenticated, ErrAuthRequired)
			}

			if err := a.Authorize(ctx, claims, roles...); err != nil {
				return errs.New(errs.PermissionDenied, ErrInsufficientPermissions)
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}
