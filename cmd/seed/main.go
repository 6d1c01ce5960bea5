// Command seed provisions the first administrator account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/app"
	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/services"
	"github.com/charlesng35/kiddies/pkg/logger"
)

const (
	defaultAdminEmail     = "admin@church.org"
	defaultAdminPassword  = "password"
	defaultAdminFirstName = "System"
	defaultAdminLastName  = "Administrator"
	defaultAdminPhone     = "08000000000"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type seedOptions struct {
	configPath string
	admin      services.SeedAdminInput
}

func parseFlags(args []string, out io.Writer) (seedOptions, error) {
	var opts seedOptions

	fs := flag.NewFlagSet("kiddies-seed", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&opts.admin.Email, "email", "", "Administrator email (env ADMIN_EMAIL)")
	fs.StringVar(&opts.admin.Password, "password", "", "Administrator password (env ADMIN_PASSWORD)")
	fs.StringVar(&opts.admin.FirstName, "first-name", "", "Administrator first name (env ADMIN_FIRST_NAME)")
	fs.StringVar(&opts.admin.LastName, "last-name", "", "Administrator last name (env ADMIN_LAST_NAME)")
	fs.StringVar(&opts.admin.PhoneNumber, "phone", "", "Administrator phone number (env ADMIN_PHONE)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// withDefaults fills blank fields from the environment, then from the built-in defaults.
func withDefaults(input services.SeedAdminInput) services.SeedAdminInput {
	pick := func(value, env, fallback string) string {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
		return fallback
	}

	return services.SeedAdminInput{
		Email:       pick(input.Email, "ADMIN_EMAIL", defaultAdminEmail),
		Password:    pick(input.Password, "ADMIN_PASSWORD", defaultAdminPassword),
		FirstName:   pick(input.FirstName, "ADMIN_FIRST_NAME", defaultAdminFirstName),
		LastName:    pick(input.LastName, "ADMIN_LAST_NAME", defaultAdminLastName),
		PhoneNumber: pick(input.PhoneNumber, "ADMIN_PHONE", defaultAdminPhone),
	}
}

func run(ctx context.Context, args []string, out io.Writer) (err error) {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	var paths []string
	if strings.TrimSpace(opts.configPath) != "" {
		paths = append(paths, opts.configPath)
	}
	cfg, err := app.Load(paths...)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		err = multierr.Append(err, database.Close(db))
	}()

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("auto-migrate database: %w", err)
	}

	return seedAdmin(ctx, db, withDefaults(opts.admin), out)
}

// seedAdmin creates or promotes the administrator unless an active one already exists.
func seedAdmin(ctx context.Context, db *gorm.DB, input services.SeedAdminInput, out io.Writer) error {
	log := logger.WithModule("seed")

	users, err := services.NewUserService(db)
	if err != nil {
		return err
	}

	existing, err := users.AdminExists(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info("admin already exists; skipping seed", zap.String("email", existing.Email))
		fmt.Fprintf(out, "Admin user already exists:\n  Email: %s\n  Name: %s\nSkipping seed...\n",
			existing.Email, existing.FullName())
		return nil
	}

	admin, created, err := users.EnsureAdmin(ctx, input)
	if err != nil {
		return err
	}

	if !created {
		log.Info("promoted existing user to admin", zap.String("email", admin.Email))
		fmt.Fprintf(out, "User with email %s already exists. Updated to admin role.\n", admin.Email)
		return nil
	}

	log.Info("admin user created", zap.String("email", admin.Email), zap.String("name", admin.FullName()))
	fmt.Fprintf(out, "Admin user created successfully!\n  Name: %s\n  Email: %s\n  Password: %s\n", admin.FullName(), admin.Email, input.Password)
	fmt.Fprintln(out, "Please change the password after first login!")
	return nil
}
