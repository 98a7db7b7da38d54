package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"moopoint/chat-api/internal/config"
)

// Connect opens the chat database, creating it first when the DSN names one
// that does not exist yet. Pool sizing and query log verbosity come straight
// from the service configuration.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	if err := createDatabaseIfMissing(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		PrepareStmt: true,
		Logger: gormlogger.New(&gormWriter{log: log}, gormlogger.Config{
			LogLevel: gormLevelFor(cfg.LogLevel),
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)

	return db, nil
}

// gormLevelFor maps the service log level onto GORM's. Debug environments get
// full query traces; everything else only slow queries and errors.
func gormLevelFor(serviceLevel string) gormlogger.LogLevel {
	switch strings.ToLower(serviceLevel) {
	case "debug", "trace":
		return gormlogger.Info
	case "error", "fatal":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// gormWriter routes GORM's internal log lines through the service logger.
// GORM only hands the writer lines at or above its configured level.
type gormWriter struct {
	log zerolog.Logger
}

func (w *gormWriter) Printf(format string, args ...any) {
	w.log.Info().Str("component", "gorm").Msgf(format, args...)
}

func createDatabaseIfMissing(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil // non-URL DSNs are handed to the driver untouched
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" || name == "postgres" {
		return nil
	}

	admin := *u
	admin.Path = "/postgres"

	conn, err := sql.Open("postgres", admin.String())
	if err != nil {
		return err
	}
	defer conn.Close()

	var exists bool
	err = conn.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists {
		return nil
	}

	_, err = conn.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name))
	return err
}
