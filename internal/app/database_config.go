package app

import (
	"strings"

	"github.com/charlesng35/kiddies/internal/database"
)

// ConnectionConfig converts DatabaseConfig into the options accepted by database.Open.
// Host credentials come from the section matching the driver; an unknown driver is passed
// through so database.Open reports it.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	dbCfg := database.Config{
		Driver:             strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:               strings.TrimSpace(c.Path),
		DSN:                strings.TrimSpace(c.DSN),
		Options:            c.Options,
		MaxOpenConns:       c.MaxOpenConns,
		ConnMaxLifetime:    c.ConnMaxLifetime,
		SlowQueryThreshold: c.SlowQueryThreshold,
	}

	var auth *DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite3":
		dbCfg.Driver = "sqlite"
	case "postgresql":
		dbCfg.Driver = "postgres"
		auth = &c.Postgres
	case "postgres":
		auth = &c.Postgres
	case "mysql":
		auth = &c.MySQL
	}

	if auth != nil {
		dbCfg.Host = strings.TrimSpace(auth.Host)
		dbCfg.Port = auth.Port
		dbCfg.Name = strings.TrimSpace(auth.Database)
		dbCfg.User = strings.TrimSpace(auth.Username)
		dbCfg.Password = auth.Password
	}
	return dbCfg
}
