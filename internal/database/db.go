package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/kiddies/pkg/logger"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// SlowQueryThreshold logs statements slower than this through zap. Zero disables query logging.
	SlowQueryThreshold time.Duration
}

type dialectorFunc func(Config) (gorm.Dialector, error)

var dialectors = map[string]dialectorFunc{
	"sqlite":     sqliteDialector,
	"sqlite3":    sqliteDialector,
	"postgres":   postgresDialector,
	"postgresql": postgresDialector,
	"mysql":      mysqlDialector,
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	build, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	dialector, err := build(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: queryLogger(cfg.SlowQueryThreshold)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := configurePool(db, driver, cfg); err != nil {
		_ = Close(db)
		return nil, err
	}
	return db, nil
}

// zapWriter adapts gorm's printf-style logger onto the database module logger.
type zapWriter struct {
	log *zap.Logger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func queryLogger(slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(zapWriter{log: logger.WithModule("database")}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

func configurePool(db *gorm.DB, driver string, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	maxOpen := cfg.MaxOpenConns
	if strings.HasPrefix(driver, "sqlite") {
		// a single connection serialises write transactions
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// Ping checks that the underlying connection is usable.
func Ping(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrateAndSeed migrates every census table and inserts the default settings.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return nil
}
