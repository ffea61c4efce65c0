// Package authapp maintains the app layer api for registration and sessions.
package authapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/app/sdk/metrics"
	"github.com/jcpaschoal/tenantauth/app/sdk/mid"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
)

// Messages returned to clients by the auth flows.
var (
	ErrSlugExists         = errors.New("tenant slug already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type app struct {
	log          *logger.Logger
	auth         *auth.Auth
	tenantBus    *tenantbus.Core
	userBus      *userbus.Core
	cookieSecure bool
}

func newApp(cfg Config) *app {
	return &app{
		log:          cfg.Log,
		auth:         cfg.Auth,
		tenantBus:    cfg.TenantBus,
		userBus:      cfg.UserBus,
		cookieSecure: cfg.CookieSecure,
	}
}

// newWithTx binds both cores to the transaction started by the
// BeginCommitRollback middleware.
func (a *app) newWithTx(ctx context.Context) (*tenantbus.Core, *userbus.Core, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, nil, err
	}

	tenantBus, err := a.tenantBus.NewWithTx(tx)
	if err != nil {
		return nil, nil, err
	}

	userBus, err := a.userBus.NewWithTx(tx)
	if err != nil {
		return nil, nil, err
	}

	return tenantBus, userBus, nil
}

func (a *app) register(ctx context.Context, r *http.Request) web.Encoder {
	var app Register
	if err := web.Decode(r, &app); err != nil {
		metrics.AddRegistration(ctx, metrics.OutcomeInvalid)
		return errs.New(errs.InvalidArgument, err)
	}

	nt, nu, err := toBusRegister(app)
	if err != nil {
		metrics.AddRegistration(ctx, metrics.OutcomeInvalid)
		return errs.New(errs.InvalidArgument, err)
	}

	tenantBus, userBus, err := a.newWithTx(ctx)
	if err != nil {
		metrics.AddRegistration(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "register: %s", err)
	}

	_, err = tenantBus.QueryBySlug(ctx, nt.Slug)
	switch {
	case err == nil:
		metrics.AddRegistration(ctx, metrics.OutcomeConflict)
		return errs.New(errs.Conflict, ErrSlugExists)

	case !errors.Is(err, tenantbus.ErrNotFound):
		metrics.AddRegistration(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "register: %s", err)
	}

	tnt, err := tenantBus.Create(ctx, nt)
	if err != nil {
		if errors.Is(err, tenantbus.ErrUniqueSlug) {
			metrics.AddRegistration(ctx, metrics.OutcomeConflict)
			return errs.New(errs.Conflict, ErrSlugExists)
		}
		metrics.AddRegistration(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "register: tenant[%s]: %s", nt.Slug, err)
	}

	nu.TenantID = tnt.ID

	usr, err := userBus.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, userbus.ErrUniqueEmail) {
			metrics.AddRegistration(ctx, metrics.OutcomeConflict)
			return errs.New(errs.Conflict, ErrEmailExists)
		}
		metrics.AddRegistration(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "register: user: %s", err)
	}

	token, err := a.auth.GenerateToken(usr.ID, tnt.ID, usr.Email.Address, usr.Role)
	if err != nil {
		metrics.AddRegistration(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "register: %s", err)
	}

	a.setCookie(ctx, token)
	metrics.AddRegistration(ctx, metrics.OutcomeSuccess)

	return toAppSession(usr, tnt, token)
}

func (a *app) login(ctx context.Context, r *http.Request) web.Encoder {
	var app Login
	if err := web.Decode(r, &app); err != nil {
		metrics.AddLogin(ctx, metrics.OutcomeInvalid)
		return errs.New(errs.InvalidArgument, err)
	}

	addr, err := parseEmail(app.Email)
	if err != nil {
		metrics.AddLogin(ctx, metrics.OutcomeInvalid)
		return errs.NewFieldErrors("email", err)
	}

	usr, err := a.userBus.Authenticate(ctx, addr, app.Password)
	if err != nil {
		if errors.Is(err, userbus.ErrAuthenticationFailure) {
			metrics.AddLogin(ctx, metrics.OutcomeRejected)
			return errs.New(errs.Unauthenticated, ErrInvalidCredentials)
		}
		metrics.AddLogin(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "login: %s", err)
	}

	tnt, err := a.tenantBus.QueryByID(ctx, usr.TenantID)
	if err != nil {
		metrics.AddLogin(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "login: userID[%s]: %s", usr.ID, err)
	}

	usr, err = a.userBus.TouchLastLogin(ctx, usr)
	if err != nil {
		a.log.Warn(ctx, "login: last login not recorded", "userID", usr.ID, "ERROR", err)
	}

	token, err := a.auth.GenerateToken(usr.ID, tnt.ID, usr.Email.Address, usr.Role)
	if err != nil {
		metrics.AddLogin(ctx, metrics.OutcomeError)
		return errs.Errorf(errs.Internal, "login: %s", err)
	}

	a.setCookie(ctx, token)
	metrics.AddLogin(ctx, metrics.OutcomeSuccess)

	return toAppSession(usr, tnt, token)
}

func (a *app) logout(ctx context.Context, _ *http.Request) web.Encoder {
	a.clearCookie(ctx)

	return Message{Message: "Logged out successfully"}
}

func (a *app) me(ctx context.Context, _ *http.Request) web.Encoder {
	userID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "me: %s", err)
	}

	usr, err := a.userBus.Reload(ctx, userID)
	if err != nil {
		if errors.Is(err, userbus.ErrNotFound) {
			return errs.New(errs.NotFound, ErrUserNotFound)
		}
		return errs.Errorf(errs.Internal, "me: %s", err)
	}

	tnt, err := a.tenantBus.QueryByID(ctx, usr.TenantID)
	if err != nil {
		if errors.Is(err, tenantbus.ErrNotFound) {
			return errs.New(errs.NotFound, ErrUserNotFound)
		}
		return errs.Errorf(errs.Internal, "me: %s", err)
	}

	return toAppProfile(usr, tnt)
}

// =============================================================================

func (a *app) setCookie(ctx context.Context, token string) {
	a.writeCookie(ctx, token, int(a.auth.TTL().Seconds()))
}

func (a *app) clearCookie(ctx context.Context) {
	a.writeCookie(ctx, "", -1)
}

func (a *app) writeCookie(ctx context.Context, value string, maxAge int) {
	w := web.GetWriter(ctx)
	if w == nil {
		a.log.Error(ctx, "cookie", "ERROR", fmt.Errorf("no response writer in context"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
