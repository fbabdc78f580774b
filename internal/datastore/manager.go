// Package datastore opens the inspection database and keeps its schema current.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize applies pending schema migrations.
	Initialize(ctx context.Context) error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host/database otherwise).
	Path() string
	// Dialect returns sqlite, mysql or postgres.
	Dialect() string
	// SchemaVersion returns the highest applied migration step.
	SchemaVersion(ctx context.Context) (int, error)
	// Close closes the database connection.
	Close() error
}

// NewManager opens the backend selected in settings.
func NewManager(settings *conf.Settings, log logger.Logger) (Manager, error) {
	if log == nil {
		log = GetLogger()
	}
	gormLog := logger.NewSQLLogger(log.Module("gorm"), settings.Database.SlowThreshold)

	switch settings.Database.Type {
	case conf.DatabaseSQLite:
		return NewSQLiteManager(settings.ResolvePath(settings.Database.SQLite.Path), gormLog, log)
	case conf.DatabaseMySQL:
		return NewMySQLManager(&settings.Database.MySQL, gormLog, log)
	case conf.DatabasePostgres:
		return NewPostgresManager(&settings.Database.Postgres, gormLog, log)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SQLiteManager handles the SQLite database file.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	log    logger.Logger
}

// NewSQLiteManager opens (and creates) the SQLite database at dbPath.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteManager(dbPath string, gormLog *logger.SQLLogger, log logger.Logger) (*SQLiteManager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if gormLog == nil {
		gormLog = logger.NewSQLLogger(log, 0)
	}

	var dsn string
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=ON"
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				Build()
		}
		// Recommended pragmas: WAL for concurrent readers, busy timeout for writers
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open sqlite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Build()
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &SQLiteManager{db: db, dbPath: dbPath, log: log}, nil
}

// Initialize applies pending schema migrations.
func (m *SQLiteManager) Initialize(ctx context.Context) error {
	return Migrate(ctx, m.db, m.log)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Dialect returns "sqlite".
func (m *SQLiteManager) Dialect() string {
	return conf.DatabaseSQLite
}

// SchemaVersion returns the highest applied migration step.
func (m *SQLiteManager) SchemaVersion(ctx context.Context) (int, error) {
	return CurrentVersion(ctx, m.db)
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeGorm(m.db)
}

// Exists checks if the database file exists.
func (m *SQLiteManager) Exists() bool {
	_, err := os.Stat(m.dbPath)
	return err == nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// configurePool applies the connection pool settings used by the server backends.
func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}
