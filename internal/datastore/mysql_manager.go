package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
	log      logger.Logger
}

// MySQLDSN builds the go-sql-driver DSN for the settings.
func MySQLDSN(cfg *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// NewMySQLManager opens a MySQL connection pool.
func NewMySQLManager(cfg *conf.MySQLSettings, gormLog *logger.SQLLogger, log logger.Logger) (*MySQLManager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if gormLog == nil {
		gormLog = logger.NewSQLLogger(log, 0)
	}

	db, err := gorm.Open(mysql.Open(MySQLDSN(cfg)), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Build()
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}

	return &MySQLManager{
		db:       db,
		location: fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database),
		log:      log,
	}, nil
}

// Initialize applies pending schema migrations.
func (m *MySQLManager) Initialize(ctx context.Context) error {
	return Migrate(ctx, m.db, m.log)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Dialect returns "mysql".
func (m *MySQLManager) Dialect() string {
	return conf.DatabaseMySQL
}

// SchemaVersion returns the highest applied migration step.
func (m *MySQLManager) SchemaVersion(ctx context.Context) (int, error) {
	return CurrentVersion(ctx, m.db)
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeGorm(m.db)
}
