package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteDialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(dsn), nil
}

// sqliteDSN maps a blank or ":memory:" path to a private shared-cache memory database and
// anything else to a WAL file, creating its directory.
func sqliteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	params := url.Values{}
	params.Set("_foreign_keys", "1")
	for key, value := range cfg.Options {
		params.Set(key, value)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return fmt.Sprintf("file:kiddies-%s?%s", uuid.NewString(), params.Encode()), nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	if params.Get("_journal_mode") == "" {
		params.Set("_journal_mode", "WAL")
	}
	if params.Get("_busy_timeout") == "" {
		params.Set("_busy_timeout", "5000")
	}
	return fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), params.Encode()), nil
}
