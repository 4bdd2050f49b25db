package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
)

// PostgresDB wraps the sqlx database connection
type PostgresDB struct {
	db     *sqlx.DB
	name   string
	logger *zap.Logger
}

// NewPostgresDB creates a new PostgreSQL connection
func NewPostgresDB(cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return &PostgresDB{
		db:     db,
		name:   cfg.Name,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// DB returns the underlying sqlx.DB
func (p *PostgresDB) DB() *sqlx.DB {
	return p.db
}

// StatsCollector exposes connection pool statistics to Prometheus
func (p *PostgresDB) StatsCollector() prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db.DB, p.name)
}

// HealthCheck performs a health check on the database
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Migrate applies pending schema migrations
func (p *PostgresDB) Migrate() (int, error) {
	n, err := RunMigrations(p.db.DB)
	if err != nil {
		return 0, err
	}
	p.logger.Info("Applied database migrations", zap.Int("count", n))
	return n, nil
}
