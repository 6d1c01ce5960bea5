package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultPostgresPort = 5432

func postgresDialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	// pgconn rejects malformed overrides before gorm starts dialing.
	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return postgres.Open(dsn), nil
}

// postgresDSN renders a postgres:// URL. sslmode defaults to disable unless given in Options.
func postgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String(), nil
}
