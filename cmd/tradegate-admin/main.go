// tradegate-admin is the operational CLI: it runs migrations, seeds the
// built-in roles, and bootstraps the first super admin account.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/tradegate/tradegate/pkg/auth"
	"github.com/tradegate/tradegate/pkg/catalog"
	"github.com/tradegate/tradegate/pkg/config"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/inquiry"
	"github.com/tradegate/tradegate/pkg/media"
	"github.com/tradegate/tradegate/pkg/rbac"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <command>\n\nCommands:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  migrate              Run all pending database migrations")
		fmt.Fprintln(os.Stderr, "  seed                 Seed permissions and built-in roles")
		fmt.Fprintln(os.Stderr, "  create-super-admin   Create a super admin user (prompts for password)")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	dbConn, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer dbConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := dbConn.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("Failed to reach database")
	}

	switch flag.Arg(0) {
	case "migrate":
		err = migrate(ctx, dbConn, log)
	case "seed":
		err = rbac.Seed(ctx, dbConn)
	case "create-super-admin":
		err = createSuperAdmin(ctx, dbConn, cfg, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatalf("Command %s failed", flag.Arg(0))
	}
	log.Infof("Command %s completed", flag.Arg(0))
}

// migrate runs every package's migrations in dependency order
func migrate(ctx context.Context, dbConn *sql.DB, log *logrus.Logger) error {
	steps := []struct {
		name string
		run  func(context.Context, *sql.DB) error
	}{
		{"identity", identity.RunMigrations},
		{"auth", auth.RunMigrations},
		{"catalog", catalog.RunMigrations},
		{"inquiry", inquiry.RunMigrations},
		{"media", media.RunMigrations},
	}
	for _, step := range steps {
		log.Infof("Running %s migrations", step.name)
		if err := step.run(ctx, dbConn); err != nil {
			return fmt.Errorf("%s migrations: %w", step.name, err)
		}
	}
	return nil
}

func createSuperAdmin(ctx context.Context, dbConn *sql.DB, cfg *config.Config, log *logrus.Logger) error {
	email := flag.Arg(1)
	if email == "" {
		return fmt.Errorf("usage: create-super-admin <email> [display name]")
	}
	displayName := flag.Arg(2)
	if displayName == "" {
		displayName = email
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters")
	}

	hash, err := auth.HashPassword(string(password), cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	var id string
	err = dbConn.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, is_super_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, is_super_admin = TRUE, is_active = TRUE
		RETURNING id`,
		email, displayName, hash,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	log.WithField("user_id", id).Infof("Super admin %s ready", email)
	return nil
}
