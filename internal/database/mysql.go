package database

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const defaultMySQLPort = 3306

func mysqlDialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := mysqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	return mysql.Open(dsn), nil
}

// mysqlDSN builds the DSN through the driver's own config so quoting and defaults match
// what the driver parses. Census dates are stored and scanned as UTC.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := sqlmysql.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	dc := sqlmysql.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	dc.DBName = cfg.Name
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Collation = "utf8mb4_unicode_ci"
	if len(cfg.Options) > 0 {
		dc.Params = make(map[string]string, len(cfg.Options))
		for key, value := range cfg.Options {
			dc.Params[key] = value
		}
	}
	return dc.FormatDSN(), nil
}
