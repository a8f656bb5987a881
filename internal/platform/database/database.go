package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/fieldcompass/territory-engine/infrastructure/resilience"
)

// Open establishes a PostgreSQL connection using the provided DSN and verifies
// connectivity with a ping, retrying the ping with backoff so a service
// started alongside a still-booting Postgres container doesn't fail outright.
// The returned *sql.DB must be closed by the caller.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = 5
	if err := resilience.Retry(pingCtx, retryCfg, func() error {
		return db.PingContext(pingCtx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
