package authapp

import (
	"net/http"

	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/mid"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log          *logger.Logger
	Auth         *auth.Auth
	UserBus      *userbus.Core
	TenantBus    *tenantbus.Core
	DB           sqldb.Beginner
	CookieSecure bool
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	transaction := mid.BeginCommitRollback(cfg.Log, cfg.DB)

	api := newApp(cfg)

	app.HandlerFunc(http.MethodPost, version, "/auth/register", api.register, transaction)
	app.HandlerFunc(http.MethodPost, version, "/auth/login", api.login)
	app.HandlerFunc(http.MethodPost, version, "/auth/logout", api.logout)
	app.HandlerFunc(http.MethodGet, version, "/auth/me", api.me, authen)
}
