// Package management operates on bots that have already been deployed.
package management

import (
	"context"
	"fmt"
	"strings"

	"github.com/nais/botdeploy/pkg/appname"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/logging"
	"github.com/nais/botdeploy/pkg/store"
	log "github.com/sirupsen/logrus"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusMissing Status = "missing"
	StatusUnknown Status = "unknown"
)

var ErrInvalidName = fmt.Errorf("invalid app name")

type Bot struct {
	store.Record
	Status Status `json:"status"`
}

type Manager struct {
	platform     heroku.Client
	store        store.Store
	configVarKey string
}

func New(platform heroku.Client, records store.Store, configVarKey string) *Manager {
	return &Manager{
		platform:     platform,
		store:        records,
		configVarKey: configVarKey,
	}
}

func name(raw string) (string, error) {
	n := strings.TrimSpace(raw)
	if err := appname.Validate(n); err != nil {
		return "", fmt.Errorf("%w '%s': %s", ErrInvalidName, raw, err)
	}
	return n, nil
}

// Restart cycles all dynos of an app.
func (m *Manager) Restart(ctx context.Context, appName string) error {
	n, err := name(appName)
	if err != nil {
		return err
	}
	err = m.platform.DeleteDynos(ctx, n)
	if err != nil {
		return err
	}
	logging.BotLogger(n).Infof("Restarted dynos")
	return nil
}

// UpdateConfig sets a new session value on the app and in its record.
// The record must exist.
func (m *Manager) UpdateConfig(ctx context.Context, appName, value string) (*store.Record, error) {
	n, err := name(appName)
	if err != nil {
		return nil, err
	}

	record, err := m.store.Get(ctx, n)
	if err != nil {
		return nil, err
	}

	err = m.platform.SetConfig(ctx, n, map[string]string{m.configVarKey: value})
	if err != nil {
		return nil, err
	}

	record.ConfigValue = value
	err = m.store.Upsert(ctx, *record)
	if err != nil {
		return nil, fmt.Errorf("config was updated on the platform, but the record was not saved: %w", err)
	}

	logging.BotLogger(n).Infof("Updated config var %s", m.configVarKey)

	return m.store.Get(ctx, n)
}

// Delete removes the app from the platform, then its record.
// An app that is already gone from the platform counts as deleted.
func (m *Manager) Delete(ctx context.Context, appName string) error {
	n, err := name(appName)
	if err != nil {
		return err
	}
	logger := logging.BotLogger(n)

	err = m.platform.DeleteApp(ctx, n)
	switch {
	case heroku.IsNotFound(err):
		logger.Infof("App was already deleted from the platform")
	case err != nil:
		return err
	}

	err = m.store.Delete(ctx, n)
	if err != nil {
		return fmt.Errorf("app was deleted from the platform, but the record was not removed: %w", err)
	}

	logger.Infof("Deleted bot")
	return nil
}

// List returns all recorded bots, annotated with whether the platform still has them.
// When the platform cannot be asked, every bot gets status unknown.
func (m *Manager) List(ctx context.Context) ([]Bot, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	remote := make(map[string]bool)
	apps, err := m.platform.ListApps(ctx)
	if err != nil {
		log.Warnf("List apps on platform: %s", err)
	}
	for _, app := range apps {
		remote[app.Name] = true
	}

	bots := make([]Bot, 0, len(records))
	for _, record := range records {
		status := StatusUnknown
		if err == nil {
			status = StatusMissing
			if remote[record.Name] {
				status = StatusRunning
			}
		}
		bots = append(bots, Bot{
			Record: record,
			Status: status,
		})
	}

	return bots, nil
}

// LogSession returns a URL streaming the app's recent and live log lines.
func (m *Manager) LogSession(ctx context.Context, appName string) (string, error) {
	n, err := name(appName)
	if err != nil {
		return "", err
	}
	return m.platform.CreateLogSession(ctx, n)
}
