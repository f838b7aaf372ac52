package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

const connectTimeout = 5 * time.Second

// DSN builds a lib/pq keyword connection string. Empty values are omitted
// so the driver falls back to its PG* environment defaults.
func DSN(cfg config.DatabaseConfig) string {
	parts := make([]string, 0, 7)
	add := func(key, value string) {
		if value == "" {
			return
		}
		parts = append(parts, fmt.Sprintf("%s=%s", key, quote(value)))
	}
	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", fmt.Sprint(cfg.Port))
	}
	add("user", cfg.User)
	add("password", cfg.Password)
	add("dbname", cfg.Name)
	add("sslmode", cfg.SSLMode)
	add("connect_timeout", fmt.Sprint(int(connectTimeout.Seconds())))
	return strings.Join(parts, " ")
}

func quote(value string) string {
	if !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

// NewPostgres opens the pool and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.Host, err)
	}
	return db, nil
}
