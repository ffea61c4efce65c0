package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jcpaschoal/tenantauth/api/cmd/build/all"
	"github.com/jcpaschoal/tenantauth/app/sdk/auth"
	"github.com/jcpaschoal/tenantauth/app/sdk/debug"
	"github.com/jcpaschoal/tenantauth/app/sdk/mux"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus/stores/tenantdb"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus/stores/tenantmem"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usercache"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/userdb"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/usermem"
	"github.com/jcpaschoal/tenantauth/business/sdk/hasher"
	"github.com/jcpaschoal/tenantauth/business/sdk/memdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/migrate"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/jcpaschoal/tenantauth/foundation/otel"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var build = "develop"

// Config is loaded from the environment, after an optional .env file.
type Config struct {
	Version struct {
		Build string `json:"build"`
		Desc  string `json:"desc"`
	} `json:"version"`

	App struct {
		Env   string `envconfig:"APP_ENV" default:"development"`
		Store string `envconfig:"STORE" default:"postgres"`
	}
	Web struct {
		ReadTimeout        time.Duration `envconfig:"WEB_READ_TIMEOUT" default:"5s"`
		WriteTimeout       time.Duration `envconfig:"WEB_WRITE_TIMEOUT" default:"10s"`
		IdleTimeout        time.Duration `envconfig:"WEB_IDLE_TIMEOUT" default:"120s"`
		ShutdownTimeout    time.Duration `envconfig:"WEB_SHUTDOWN_TIMEOUT" default:"20s"`
		APIHost            string        `envconfig:"WEB_API_HOST" default:"0.0.0.0:3000"`
		DebugHost          string        `envconfig:"WEB_DEBUG_HOST" default:"0.0.0.0:3010"`
		CORSAllowedOrigins []string      `envconfig:"WEB_CORS_ALLOWED_ORIGINS" default:"*"`
	}
	Auth struct {
		Secret     string        `envconfig:"AUTH_JWT_SECRET" required:"true"`
		Issuer     string        `envconfig:"AUTH_ISSUER" default:"tenantauth"`
		TokenTTL   time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"168h"`
		BcryptCost int           `envconfig:"AUTH_BCRYPT_COST" default:"10"`
	}
	DB struct {
		User         string        `envconfig:"DB_USER" default:"postgres"`
		Password     string        `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string        `envconfig:"DB_HOST" default:"localhost"`
		Name         string        `envconfig:"DB_NAME" default:"tenantauth"`
		Schema       string        `envconfig:"DB_SCHEMA" default:""`
		MaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool          `envconfig:"DB_DISABLE_TLS" default:"true"`
		Migrate      bool          `envconfig:"DB_MIGRATE" default:"true"`
		UserCacheTTL time.Duration `envconfig:"DB_USER_CACHE_TTL" default:"5m"`
	}
	Tempo struct {
		Host        string  `envconfig:"TEMPO_HOST" default:""`
		ServiceName string  `envconfig:"TEMPO_SERVICE_NAME" default:"TENANTAUTH"`
		Probability float64 `envconfig:"TEMPO_PROBABILITY" default:"0.05"`
	}
}

func main() {
	var log *logger.Logger

	events := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			log.Info(ctx, "******* SEND ALERT *******")
		},
	}

	log = logger.NewWithEvents(os.Stdout, logger.LevelInfo, "TENANTAUTH", otel.GetTraceID, events)

	// -------------------------------------------------------------------------

	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {

	// -------------------------------------------------------------------------
	// GOMAXPROCS

	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config

	cfg.Version.Build = build
	cfg.Version.Desc = "TENANTAUTH"

	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	// -------------------------------------------------------------------------
	// App Info & Config Logging

	log.Info(ctx, "startup", "version", cfg.Version)
	log.Info(ctx, "startup", "config", sanitizeConfig(cfg))

	log.Info(ctx, "starting service", "version", cfg.Version.Build)
	defer log.Info(ctx, "shutdown complete")

	log.BuildInfo(ctx)

	expvar.NewString("build").Set(cfg.Version.Build)

	// -------------------------------------------------------------------------
	// Storage Support

	st, err := openStorage(ctx, log, cfg)
	if err != nil {
		return err
	}

	defer st.close()

	// -------------------------------------------------------------------------
	// Auth Support

	log.Info(ctx, "startup", "status", "initializing authentication support")

	ath, err := auth.New(auth.Config{
		Log:    log,
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("constructing auth: %w", err)
	}

	hsr := hasher.New(cfg.Auth.BcryptCost)

	tenantBus := tenantbus.NewCore(log, st.tenants)
	userBus := userbus.NewCore(log, hsr, usercache.NewStore(log, st.users, cfg.DB.UserCacheTTL))

	// -------------------------------------------------------------------------
	// Start Tracing Support

	log.Info(ctx, "startup", "status", "initializing tracing support")

	traceProvider, teardown, err := otel.InitTracing(log, otel.Config{
		ServiceName: cfg.Tempo.ServiceName,
		Host:        cfg.Tempo.Host,
		ExcludedRoutes: map[string]struct{}{
			"/v1/liveness":  {},
			"/v1/readiness": {},
		},
		Probability: cfg.Tempo.Probability,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}

	defer teardown(context.Background())

	tracer := traceProvider.Tracer(cfg.Tempo.ServiceName)

	// -------------------------------------------------------------------------
	// Start Debug Service

	go func() {
		log.Info(ctx, "startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

		if err := http.ListenAndServe(cfg.Web.DebugHost, debug.Mux()); err != nil {
			log.Error(ctx, "shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start API Service

	log.Info(ctx, "startup", "status", "initializing V1 API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	cfgMux := mux.Config{
		Build:    cfg.Version.Build,
		Log:      log,
		DB:       st.db,
		Beginner: st.beginner,
		Tracer:   tracer,
		BusConfig: mux.BusConfig{
			TenantBus: tenantBus,
			UserBus:   userBus,
		},
		AuthConfig: mux.AuthConfig{
			Auth:         ath,
			CookieSecure: cfg.App.Env == "production",
		},
	}

	webAPI := mux.WebAPI(cfgMux,
		all.Routes(),
		mux.WithCORS(cfg.Web.CORSAllowedOrigins),
	)

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      webAPI,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// =============================================================================

type storage struct {
	db       *sqlx.DB
	beginner sqldb.Beginner
	tenants  tenantbus.Storer
	users    userbus.Storer
	close    func()
}

// openStorage selects the store backing the buses. The memory store keeps
// everything in process and is meant for local runs.
func openStorage(ctx context.Context, log *logger.Logger, cfg Config) (storage, error) {
	switch cfg.App.Store {
	case "memory":
		log.Warn(ctx, "startup", "status", "using in-memory store, data is lost on restart")

		return storage{
			beginner: memdb.NewBeginner(),
			tenants:  tenantmem.NewStore(),
			users:    usermem.NewStore(),
			close:    func() {},
		}, nil

	case "postgres":
		log.Info(ctx, "startup", "status", "initializing database support", "hostport", cfg.DB.Host)

		db, err := sqldb.Open(sqldb.Config{
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			Host:         cfg.DB.Host,
			Name:         cfg.DB.Name,
			Schema:       cfg.DB.Schema,
			MaxIdleConns: cfg.DB.MaxIdleConns,
			MaxOpenConns: cfg.DB.MaxOpenConns,
			DisableTLS:   cfg.DB.DisableTLS,
		})
		if err != nil {
			return storage{}, fmt.Errorf("connecting to db: %w", err)
		}

		if cfg.DB.Migrate {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := migrate.Migrate(ctx, log, db); err != nil {
				db.Close()
				return storage{}, fmt.Errorf("migrating db: %w", err)
			}
		}

		return storage{
			db:       db,
			beginner: sqldb.NewBeginner(db),
			tenants:  tenantdb.NewStore(log, db),
			users:    userdb.NewStore(log, db),
			close:    func() { db.Close() },
		}, nil
	}

	return storage{}, fmt.Errorf("unknown store %q", cfg.App.Store)
}

func sanitizeConfig(cfg Config) string {
	cfg.DB.Password = "[MASKED]"
	cfg.Auth.Secret = "[MASKED]"

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("%+v", cfg)
	}
	return string(data)
}
