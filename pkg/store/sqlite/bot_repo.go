package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nais/botdeploy/pkg/metrics"
	"github.com/nais/botdeploy/pkg/store"
)

const backend = "sqlite"

// BotRepo implements [store.Store] backed by SQLite.
type BotRepo struct {
	DB *sql.DB
}

var _ store.Store = &BotRepo{}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Upsert keeps created_at of an existing row; the conflict clause never touches it.
func (r *BotRepo) Upsert(ctx context.Context, record store.Record) (err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	record = store.Stamp(record, nil, time.Now())

	_, err = r.DB.ExecContext(ctx, `
INSERT INTO bots (name, repo, config_value, url, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    repo = excluded.repo,
    config_value = excluded.config_value,
    url = excluded.url,
    role = excluded.role,
    updated_at = excluded.updated_at`,
		record.Name, record.Repo, record.ConfigValue, record.URL, record.Role,
		formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert bot: %w", err)
	}
	return nil
}

func (r *BotRepo) Delete(ctx context.Context, name string) (err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	_, err = r.DB.ExecContext(ctx, `DELETE FROM bots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	return nil
}

func (r *BotRepo) List(ctx context.Context) (records []store.Record, err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	rows, err := r.DB.QueryContext(ctx, `
SELECT name, repo, config_value, url, role, created_at, updated_at
FROM bots
ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	records = make([]store.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (r *BotRepo) Get(ctx context.Context, name string) (record *store.Record, err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	row := r.DB.QueryRowContext(ctx, `
SELECT name, repo, config_value, url, role, created_at, updated_at
FROM bots
WHERE name = ?`, name)

	record, err = scanRecord(row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("bot '%s': %w", name, store.ErrNotFound)
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*store.Record, error) {
	record := &store.Record{}
	var created, updated string

	err := s.Scan(
		&record.Name,
		&record.Repo,
		&record.ConfigValue,
		&record.URL,
		&record.Role,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bot: %w", err)
	}

	record.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	record.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return record, nil
}
