// Package checkapp maintains the app layer api for the check domain.
package checkapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// ErrNotReady is reported while the database cannot be reached.
var ErrNotReady = errors.New("database not ready")

type app struct {
	build string
	log   *logger.Logger
	db    *sqlx.DB
}

func newApp(build string, log *logger.Logger, db *sqlx.DB) *app {
	return &app{
		build: build,
		log:   log,
		db:    db,
	}
}

// readiness checks if the database is ready and if not will return a 503
// status. A service running on the memory store is always ready.
func (a *app) readiness(ctx context.Context, _ *http.Request) web.Encoder {
	if a.db == nil {
		return Info{Status: "ok"}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := sqldb.StatusCheck(ctx, a.db); err != nil {
		a.log.Info(ctx, "readiness failure", "ERROR", err)
		return errs.New(errs.Unavailable, ErrNotReady)
	}

	return Info{Status: "ok"}
}

// liveness returns simple status info if the service is alive.
func (a *app) liveness(_ context.Context, _ *http.Request) web.Encoder {
	host, err := os.Hostname()
	if err != nil {
		host = "unavailable"
	}

	return Info{
		Status:     "up",
		Build:      a.build,
		Host:       host,
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}
}
