// Package all binds all the routes into the specified app.
package all

import (
	"github.com/jcpaschoal/tenantauth/app/domain/authapp"
	"github.com/jcpaschoal/tenantauth/app/domain/checkapp"
	"github.com/jcpaschoal/tenantauth/app/domain/userapp"
	"github.com/jcpaschoal/tenantauth/app/sdk/mux"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
)

// Routes constructs the add value which provides the implementation of
// of RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouterAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	checkapp.Routes(app, checkapp.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	authapp.Routes(app, authapp.Config{
		Log:          cfg.Log,
		Auth:         cfg.AuthConfig.Auth,
		UserBus:      cfg.BusConfig.UserBus,
		TenantBus:    cfg.BusConfig.TenantBus,
		DB:           cfg.Beginner,
		CookieSecure: cfg.AuthConfig.CookieSecure,
	})

	userapp.Routes(app, userapp.Config{
		Auth:    cfg.AuthConfig.Auth,
		UserBus: cfg.BusConfig.UserBus,
	})
}
