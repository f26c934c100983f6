// Package store opens and probes the target database connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/driftsql/drift/drifterrors"

	// Package pq is a pure Go Postgres driver for database/sql.
	_ "github.com/lib/pq"
	// Package sqlite is a CGo-free port of SQLite/SQLite3.
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite     = "sqlite"
	DriverPostgreSQL = "postgres"

	// DefaultConnectRetries bounds the ready-polling loop.
	DefaultConnectRetries = 5

	// DefaultConnectInterval is the fixed delay between ready probes.
	DefaultConnectInterval = 2 * time.Second
)

// InferDriver guesses the driver from the DSN scheme. Anything that is not
// a PostgreSQL URL is treated as an SQLite file path.
func InferDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgreSQL
	}

	return DriverSQLite
}

// Open opens a database handle for the given driver and DSN.
// The connection is not probed; use [WaitReady] for that.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", driver, err)
	}

	return db, nil
}

// WaitReady pings the database until it responds, a bounded number of times
// with a fixed interval in between. It returns
// [drifterrors.ErrConnectionNotReady] wrapping the last ping error once the
// retry budget is exhausted.
func WaitReady(ctx context.Context, db *sql.DB, retries int, interval time.Duration, logf func(format string, args ...any)) error {
	if retries <= 0 {
		retries = DefaultConnectRetries
	}

	if interval <= 0 {
		interval = DefaultConnectInterval
	}

	if logf == nil {
		logf = func(string, ...any) {}
	}

	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = db.PingContext(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}

		if attempt < retries {
			logf("Database not ready (attempt %d/%d): %v\n", attempt, retries, lastErr)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", drifterrors.ErrConnectionNotReady, ctx.Err())
			case <-time.After(interval):
			}
		}
	}

	return fmt.Errorf("%w: %w", drifterrors.ErrConnectionNotReady, lastErr)
}

// HasPassword reports whether a PostgreSQL URL carries a password.
func HasPassword(dsn string) (bool, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return false, fmt.Errorf("parse dsn: %w", err)
	}

	if u.User == nil {
		return false, nil
	}

	_, ok := u.User.Password()

	return ok, nil
}

// WithPassword returns dsn with the given password injected into its
// userinfo section.
func WithPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	username := ""
	if u.User != nil {
		username = u.User.Username()
	}

	u.User = url.UserPassword(username, password)

	return u.String(), nil
}
