package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nais/botdeploy/pkg/metrics"
	"github.com/nais/botdeploy/pkg/store"
	log "github.com/sirupsen/logrus"
)

const (
	backend = "postgres"

	undefinedTable = "42P01"
)

var migrations = []string{
	`
CREATE TABLE migrations
(
    version int primary key not null,
    created timestamp with time zone not null
);

CREATE TABLE bots
(
    name         varchar primary key      not null,
    repo         varchar                  not null,
    config_value varchar                  not null,
    url          varchar                  not null,
    role         varchar                  not null,
    created_at   timestamp with time zone not null,
    updated_at   timestamp with time zone not null
);

INSERT INTO migrations (version, created)
VALUES (1, now());
`,
}

type Database struct {
	conn *pgxpool.Pool
}

var _ store.Store = &Database{}

func New(ctx context.Context, dsn string) (*Database, error) {
	conn, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &Database{
		conn: conn,
	}, nil
}

func (db *Database) Close() {
	db.conn.Close()
}

func (db *Database) timedQuery(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	now := time.Now()
	rows, err := db.conn.Query(ctx, sql, args...)
	metrics.DatabaseQuery(backend, now, err)
	return rows, err
}

func (db *Database) timedExec(ctx context.Context, sql string, args ...interface{}) error {
	now := time.Now()
	_, err := db.conn.Exec(ctx, sql, args...)
	metrics.DatabaseQuery(backend, now, err)
	return err
}

func (db *Database) Migrate(ctx context.Context) error {
	var version int

	query := `SELECT MAX(version) FROM migrations`
	row := db.conn.QueryRow(ctx, query)
	err := row.Scan(&version)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
	case errors.As(err, &pgErr) && pgErr.Code == undefinedTable:
		log.Infof("database has no schema, running all migrations")
	default:
		// continue with migrations; the first one fails if the schema is in an unknown state.
		log.Warnf("unable to get current migration version: %s", err)
	}

	for version < len(migrations) {
		log.Infof("migrating database schema to version %d", version+1)

		_, err = db.conn.Exec(ctx, migrations[version])
		if err != nil {
			return fmt.Errorf("migrating to version %d: %s", version+1, err)
		}

		version++
	}

	return nil
}

func (db *Database) Upsert(ctx context.Context, record store.Record) error {
	record = store.Stamp(record, nil, time.Now())

	query := `
INSERT INTO bots (name, repo, config_value, url, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE
SET repo = EXCLUDED.repo, config_value = EXCLUDED.config_value, url = EXCLUDED.url,
    role = EXCLUDED.role, updated_at = EXCLUDED.updated_at;
`
	return db.timedExec(ctx, query,
		record.Name,
		record.Repo,
		record.ConfigValue,
		record.URL,
		record.Role,
		record.CreatedAt,
		record.UpdatedAt,
	)
}

func (db *Database) Delete(ctx context.Context, name string) error {
	return db.timedExec(ctx, `DELETE FROM bots WHERE name = $1;`, name)
}

func scanRecord(rows pgx.Rows) (*store.Record, error) {
	record := &store.Record{}

	err := rows.Scan(
		&record.Name,
		&record.Repo,
		&record.ConfigValue,
		&record.URL,
		&record.Role,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	return record, err
}

func (db *Database) List(ctx context.Context) ([]store.Record, error) {
	query := `
SELECT name, repo, config_value, url, role, created_at, updated_at
FROM bots
ORDER BY name;
`
	rows, err := db.timedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	records := make([]store.Record, 0)
	defer rows.Close()
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

func (db *Database) Get(ctx context.Context, name string) (*store.Record, error) {
	query := `
SELECT name, repo, config_value, url, role, created_at, updated_at
FROM bots
WHERE name = $1;
`
	rows, err := db.timedQuery(ctx, query, name)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("bot '%s': %w", name, store.ErrNotFound)
	}

	return scanRecord(rows)
}

// Truncate removes all records. Only used by tests against a live database.
func (db *Database) Truncate(ctx context.Context) error {
	return db.timedExec(ctx, `TRUNCATE bots;`)
}
