package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("bot record not found")

func IsErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Record is the locally persisted state of one deployed bot, keyed by Name.
type Record struct {
	Name        string    `json:"name"`
	Repo        string    `json:"repo"`
	ConfigValue string    `json:"configValue"`
	URL         string    `json:"url"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists bot records. Implementations serialize writes.
type Store interface {
	// Upsert inserts or replaces the record with the same name.
	// CreatedAt of an existing record is kept.
	Upsert(ctx context.Context, record Record) error
	// Delete removes a record. Deleting an unknown name is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all records ordered by name.
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, name string) (*Record, error)
}

// Stamp fills in timestamps before a write. CreatedAt is taken from existing when present.
func Stamp(record Record, existing *Record, now time.Time) Record {
	now = now.UTC().Truncate(time.Microsecond)
	record.UpdatedAt = now
	switch {
	case existing != nil:
		record.CreatedAt = existing.CreatedAt
	case record.CreatedAt.IsZero():
		record.CreatedAt = now
	}
	return record
}
