// Package filestore keeps bot records in a single JSON document on local disk.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nais/botdeploy/pkg/metrics"
	"github.com/nais/botdeploy/pkg/store"
)

const backend = "file"

type document struct {
	Bots []store.Record `json:"bots"`
}

type Store struct {
	path string
	lock sync.Mutex
	now  func() time.Time
}

var _ store.Store = &Store{}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory for record file: %w", err)
	}
	return &Store{
		path: path,
		now:  time.Now,
	}, nil
}

func (s *Store) load() (map[string]store.Record, error) {
	records := make(map[string]store.Record)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}

	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}
	for _, record := range doc.Bots {
		records[record.Name] = record
	}

	return records, nil
}

func sorted(records map[string]store.Record) []store.Record {
	list := make([]store.Record, 0, len(records))
	for _, record := range records {
		list = append(list, record)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// save replaces the record file atomically by renaming a fully written temporary file over it.
func (s *Store) save(records map[string]store.Record) error {
	data, err := json.MarshalIndent(document{Bots: sorted(records)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary record file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temporary record file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temporary record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary record file: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}

func (s *Store) Upsert(_ context.Context, record store.Record) (err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	var existing *store.Record
	if r, ok := records[record.Name]; ok {
		existing = &r
	}
	records[record.Name] = store.Stamp(record, existing, s.now())

	return s.save(records)
}

func (s *Store) Delete(_ context.Context, name string) (err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)

	return s.save(records)
}

func (s *Store) List(_ context.Context) (list []store.Record, err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	return sorted(records), nil
}

func (s *Store) Get(_ context.Context, name string) (record *store.Record, err error) {
	defer func(t time.Time) { metrics.DatabaseQuery(backend, t, err) }(time.Now())

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	r, ok := records[name]
	if !ok {
		return nil, fmt.Errorf("bot '%s': %w", name, store.ErrNotFound)
	}

	return &r, nil
}
