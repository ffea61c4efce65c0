// Package dbtest contains supporting code for running tests that hit the DB.
package dbtest

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/jcpaschoal/tenantauth/business/sdk/migrate"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/jcpaschoal/tenantauth/foundation/otel"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Database owns state for running and shutting down tests.
type Database struct {
	DB  *sqlx.DB
	Log *logger.Logger
}

// New starts a PostgreSQL container, applies the migrations and returns a
// connected database. Tests are skipped when SKIP_INTEGRATION=true or when no
// container runtime is available. The log output is printed only when the
// test fails.
func New(t *testing.T, testName string) *Database {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping database tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("tenantauth_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	db, err := sqldb.Open(sqldb.Config{
		User:         "test",
		Password:     "test",
		Host:         net.JoinHostPort(host, port.Port()),
		Name:         "tenantauth_test",
		MaxIdleConns: 2,
		MaxOpenConns: 5,
		DisableTLS:   true,
	})
	if err != nil {
		t.Fatalf("opening database connection: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, testName, otel.GetTraceID)

	t.Cleanup(func() {
		if t.Failed() {
			fmt.Printf("******************** LOGS (%s) ********************\n\n", testName)
			fmt.Print(buf.String())
			fmt.Printf("******************** LOGS (%s) ********************\n", testName)
		}
	})

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := migrate.Migrate(ctx, log, db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return &Database{
		DB:  db,
		Log: log,
	}
}
