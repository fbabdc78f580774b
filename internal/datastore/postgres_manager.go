package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// PostgresManager handles a PostgreSQL database.
type PostgresManager struct {
	db       *gorm.DB
	location string
	log      logger.Logger
}

// PostgresDSN builds the pgx key/value DSN for the settings.
func PostgresDSN(cfg *conf.PostgresSettings) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)
}

// NewPostgresManager opens a PostgreSQL connection pool.
func NewPostgresManager(cfg *conf.PostgresSettings, gormLog *logger.SQLLogger, log logger.Logger) (*PostgresManager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if gormLog == nil {
		gormLog = logger.NewSQLLogger(log, 0)
	}

	db, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open PostgreSQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Build()
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}

	return &PostgresManager{
		db:       db,
		location: fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database),
		log:      log,
	}, nil
}

// Initialize applies pending schema migrations.
func (m *PostgresManager) Initialize(ctx context.Context) error {
	return Migrate(ctx, m.db, m.log)
}

// DB returns the underlying GORM database.
func (m *PostgresManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *PostgresManager) Path() string {
	return m.location
}

// Dialect returns "postgres".
func (m *PostgresManager) Dialect() string {
	return conf.DatabasePostgres
}

// SchemaVersion returns the highest applied migration step.
func (m *PostgresManager) SchemaVersion(ctx context.Context) (int, error) {
	return CurrentVersion(ctx, m.db)
}

// Close closes the database connection.
func (m *PostgresManager) Close() error {
	return closeGorm(m.db)
}
