// Admin performs maintenance tasks against the service database.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus/stores/tenantdb"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus/stores/userdb"
	"github.com/jcpaschoal/tenantauth/business/sdk/hasher"
	"github.com/jcpaschoal/tenantauth/business/sdk/migrate"
	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/password"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/business/types/slug"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config replicates necessary DB config structure
type Config struct {
	DB struct {
		User         string `envconfig:"DB_USER" default:"postgres"`
		Password     string `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string `envconfig:"DB_HOST" default:"localhost"`
		Name         string `envconfig:"DB_NAME" default:"tenantauth"`
		Schema       string `envconfig:"DB_SCHEMA" default:""`
		MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool   `envconfig:"DB_DISABLE_TLS" default:"true"`
	}
	Auth struct {
		BcryptCost int `envconfig:"AUTH_BCRYPT_COST" default:"10"`
	}
}

func main() {
	log := logger.New(os.Stdout, logger.LevelInfo, "ADMIN-TOOL", nil)
	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "admin", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: migrate, create-user, deactivate-user")
		return nil
	}

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

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
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	userBus := userbus.NewCore(log, hasher.New(cfg.Auth.BcryptCost), userdb.NewStore(log, db))
	tenantBus := tenantbus.NewCore(log, tenantdb.NewStore(log, db))

	switch os.Args[1] {
	case "migrate":
		if err := migrate.Migrate(ctx, log, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations complete")
		return nil

	case "create-user":
		return runCreateUser(ctx, tenantBus, userBus, os.Args[2:])

	case "deactivate-user":
		return runDeactivateUser(ctx, userBus, os.Args[2:])

	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runCreateUser(ctx context.Context, tb *tenantbus.Core, ub *userbus.Core, args []string) error {
	cmd := flag.NewFlagSet("create-user", flag.ExitOnError)
	tenantStr := cmd.String("tenant", "", "Tenant slug (Required)")
	emailStr := cmd.String("email", "", "User email (Required)")
	passStr := cmd.String("password", "", "User password (Required)")
	nameStr := cmd.String("name", "", "User full name (Required)")
	roleStr := cmd.String("role", "MEMBER", "User role (ADMIN, MANAGER, MEMBER)")
	cmd.Parse(args)

	if *tenantStr == "" || *emailStr == "" || *passStr == "" || *nameStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required fields")
	}

	slg, err := slug.Parse(*tenantStr)
	if err != nil {
		return fmt.Errorf("invalid tenant: %w", err)
	}

	tnt, err := tb.QueryBySlug(ctx, slg)
	if err != nil {
		return fmt.Errorf("tenant lookup: %w", err)
	}

	n, err := name.Parse(*nameStr)
	if err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}

	r, err := role.Parse(*roleStr)
	if err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	p, err := password.Parse(*passStr)
	if err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	addr, err := parseEmail(*emailStr)
	if err != nil {
		return err
	}

	usr, err := ub.Create(ctx, userbus.NewUser{
		TenantID: tnt.ID,
		Name:     n,
		Email:    addr,
		Role:     r,
		Password: p,
	})
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}

	fmt.Printf("\nSUCCESS: User created!\nID: %s\nTenant: %s\nEmail: %s\nRole: %s\n", usr.ID, tnt.Slug, usr.Email.Address, usr.Role)
	return nil
}

func runDeactivateUser(ctx context.Context, ub *userbus.Core, args []string) error {
	cmd := flag.NewFlagSet("deactivate-user", flag.ExitOnError)
	emailStr := cmd.String("email", "", "User email (Required)")
	cmd.Parse(args)

	if *emailStr == "" {
		cmd.PrintDefaults()
		return fmt.Errorf("missing required email")
	}

	addr, err := parseEmail(*emailStr)
	if err != nil {
		return err
	}

	usr, err := ub.QueryByEmail(ctx, addr)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}

	off := false
	if _, err := ub.Update(ctx, usr, userbus.UpdateUser{Active: &off}); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}

	fmt.Printf("\nSUCCESS: User %s deactivated\n", usr.Email.Address)
	return nil
}

func parseEmail(value string) (mail.Address, error) {
	addr, err := mail.ParseAddress(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return mail.Address{}, fmt.Errorf("invalid email: %w", err)
	}

	return mail.Address{Address: addr.Address}, nil
}
