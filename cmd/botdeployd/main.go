package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nais/botdeploy/pkg/api"
	"github.com/nais/botdeploy/pkg/botdeployd/config"
	"github.com/nais/botdeploy/pkg/conftools"
	"github.com/nais/botdeploy/pkg/deployer"
	"github.com/nais/botdeploy/pkg/github"
	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/logging"
	"github.com/nais/botdeploy/pkg/management"
	"github.com/nais/botdeploy/pkg/source"
	"github.com/nais/botdeploy/pkg/store"
	"github.com/nais/botdeploy/pkg/store/filestore"
	"github.com/nais/botdeploy/pkg/store/postgres"
	"github.com/nais/botdeploy/pkg/store/sqlite"
	"github.com/nais/botdeploy/pkg/telemetry"
	"github.com/nais/botdeploy/pkg/version"
)

const (
	databaseConnectBackoffInterval = 3 * time.Second
)

func run() error {
	cfg := config.Initialize()
	err := conftools.Load(cfg)
	if err != nil {
		return err
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	// Welcome
	log.Infof("botdeployd %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}

	for _, line := range conftools.Format(config.Secrets) {
		log.Info(line)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerProvider, err := telemetry.New(ctx, "botdeployd", cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Shut down tracing: %s", err)
		}
	}()

	records, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	observed := store.NewObserved(records)

	verifier, err := forkVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	platform := heroku.New(cfg.HerokuConfig())
	resolver := source.NewResolver(cfg.SourceConfig())

	orchestrator, err := deployer.New(cfg.DeployerConfig(), platform, resolver, observed, verifier)
	if err != nil {
		return fmt.Errorf("set up deployments: %w", err)
	}

	router := api.New(api.Config{
		Deployer:          orchestrator,
		Manager:           management.New(platform, observed, cfg.Deploy.ConfigVarKey),
		Events:            observed,
		Verifier:          verifier,
		AllowedOrigins:    cfg.CorsAllowedOrigins,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MetricsPath:       cfg.MetricsPath,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	log.Infof("Ready to accept connections on %s", server.Addr)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Infof("Received signal, exiting...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down http server: %w", err)
	}

	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.SQLite)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Using SQLite record store")
		return &sqlite.BotRepo{DB: db}, func() { db.Close() }, nil

	case config.StorePostgres:
		db, err := connectPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		err = db.Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrating database: %s", err)
		}
		log.Infof("Using PostgreSQL record store")
		return db, db.Close, nil

	default:
		records, err := filestore.New(cfg.Store.FilePath)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Using record file %s", cfg.Store.FilePath)
		return records, func() {}, nil
	}
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Database, error) {
	var db *postgres.Database
	var err error

	ctx, cancel := context.WithTimeout(ctx, cfg.DatabaseConnectTimeout)
	defer cancel()

	for {
		log.Infof("Connecting to database...")
		db, err = postgres.New(ctx, cfg.DatabaseURL)
		if err == nil {
			log.Infof("Database connection established.")
			return db, nil
		} else if ctx.Err() != nil {
			return nil, fmt.Errorf("setup postgres connection: %s", err)
		}
		log.Errorf("unable to connect to database: %s", err)
		time.Sleep(databaseConnectBackoffInterval)
	}
}

func forkVerifier(ctx context.Context, cfg *config.Config) (github.Verifier, error) {
	if len(cfg.Github.Owner) == 0 || len(cfg.Github.Repository) == 0 {
		log.Infof("Upstream repository not configured, fork verification is disabled")
		return github.FakeVerifier(), nil
	}

	var cache github.Cache
	if len(cfg.Redis.Address) > 0 {
		var err error
		cache, err = github.NewRedisCache(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Github.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("set up fork verification cache: %w", err)
		}
		log.Infof("Memoizing fork verifications in Redis at %s", cfg.Redis.Address)
	} else {
		cache = github.NewMemoryCache(cfg.Github.CacheSize, cfg.Github.CacheTTL)
	}

	ghConfig := cfg.GithubConfig()
	ghConfig.Cache = cache

	return github.NewForkChecker(ctx, ghConfig)
}

func main() {
	err := run()
	if err != nil {
		log.Errorf("Fatal error: %s", err)
		os.Exit(1)
	}
}
