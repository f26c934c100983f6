package engine

import "fmt"

// Dialect provides the SQL needed to manage the single-row revision
// bookkeeping table for a specific database flavor.
type Dialect interface {
	// CreateRevisionTableQuery returns the SQL for creating the revision
	// table. The table holds at most one row, keyed by a fixed id of 0,
	// with the recorded revision id as text.
	CreateRevisionTableQuery() string

	// CurrentRevisionQuery returns the SQL for reading the recorded
	// revision. It must return at most one row with a single text column.
	CurrentRevisionQuery() string

	// SaveRevisionQuery returns the SQL for unconditionally upserting the
	// recorded revision, provided as the single positional parameter.
	SaveRevisionQuery() string

	// DeleteRevisionQuery returns the SQL for removing the recorded
	// revision row, returning the database to the "none" state.
	DeleteRevisionQuery() string

	// DropRevisionTableQuery returns the SQL for dropping the revision
	// table entirely.
	DropRevisionTableQuery() string
}

// SQLiteDialect manages revision bookkeeping for an SQLite database.
type SQLiteDialect struct{}

var _ Dialect = SQLiteDialect{}

func (SQLiteDialect) CreateRevisionTableQuery() string {
	return `
		CREATE TABLE
			IF NOT EXISTS schema_revision (
				id INTEGER PRIMARY KEY CHECK (id = 0),
				revision TEXT NOT NULL
			);
		`
}

func (SQLiteDialect) CurrentRevisionQuery() string {
	return `SELECT revision FROM schema_revision;`
}

func (SQLiteDialect) SaveRevisionQuery() string {
	return `
		INSERT INTO schema_revision (id, revision)
		VALUES (0, $1)
		ON CONFLICT(id)
		DO UPDATE SET revision = EXCLUDED.revision;
	`
}

func (SQLiteDialect) DeleteRevisionQuery() string {
	return `DELETE FROM schema_revision;`
}

func (SQLiteDialect) DropRevisionTableQuery() string {
	return `DROP TABLE IF EXISTS schema_revision;`
}

// PostgreSQLDialect manages revision bookkeeping for a PostgreSQL database.
type PostgreSQLDialect struct{}

var _ Dialect = PostgreSQLDialect{}

func (PostgreSQLDialect) CreateRevisionTableQuery() string {
	return `
		CREATE TABLE
			IF NOT EXISTS schema_revision (
				id INTEGER PRIMARY KEY CHECK (id = 0),
				revision TEXT NOT NULL
			);
	`
}

func (PostgreSQLDialect) CurrentRevisionQuery() string {
	return `SELECT revision FROM schema_revision;`
}

func (PostgreSQLDialect) SaveRevisionQuery() string {
	return `
		INSERT INTO schema_revision (id, revision)
		VALUES (0, $1)
		ON CONFLICT (id)
		DO UPDATE SET revision = EXCLUDED.revision;
	`
}

func (PostgreSQLDialect) DeleteRevisionQuery() string {
	return `DELETE FROM schema_revision;`
}

func (PostgreSQLDialect) DropRevisionTableQuery() string {
	return `DROP TABLE IF EXISTS schema_revision;`
}

// DialectFor returns the dialect matching the given driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLiteDialect{}, nil
	case "postgres":
		return PostgreSQLDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
