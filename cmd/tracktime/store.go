package main

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/datastore"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/config"
	"github.com/panyam/tracktime/stores"
	"github.com/panyam/tracktime/stores/fs"
	"github.com/panyam/tracktime/stores/gae"
	gormstore "github.com/panyam/tracktime/stores/gorm"
	"github.com/panyam/tracktime/stores/keyring"
)

const defaultDSN = "file:tracktime.db"

// loadConfig resolves the config file and environment, then applies flags.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.store != "" {
		cfg.Store = g.store
		cfg.Sources["store"] = config.SourceFlag
	}
	if g.location != "" {
		cfg.StoreLocation = g.location
		cfg.Sources["store_location"] = config.SourceFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore builds the configured settings store. Secrets are sealed at rest
// when an encryption key is configured. The returned closer releases backend
// resources.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (tt.SettingsStore, func() error, error) {
	base, closer, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if cfg.EncryptionKey == "" {
		if cfg.Store != config.StoreKeyring && cfg.Store != config.StoreMemory {
			log.Warn().Str("store", cfg.Store).Msg("No encryption key configured, secrets are stored in plain text")
		}
		return base, closer, nil
	}
	return stores.NewSealed(base, stores.KeyFromString(cfg.EncryptionKey)), closer, nil
}

func noopCloser() error { return nil }

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (tt.SettingsStore, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return stores.NewMemoryStore(), noopCloser, nil

	case config.StoreFS:
		s, err := fs.NewFSSettingsStore(cfg.StoreLocation)
		if err != nil {
			return nil, nil, fmt.Errorf("open settings file: %w", err)
		}
		log.Info().Str("path", s.Path()).Msg("Using file settings store")
		return s, noopCloser, nil

	case config.StoreGorm:
		dsn := cfg.StoreLocation
		if dsn == "" {
			dsn = defaultDSN
		}
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		if strings.Contains(dsn, ":memory:") {
			// each pooled connection would otherwise get its own database
			sqlDB.SetMaxOpenConns(1)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Info().Msg("Using SQL settings store")
		return gormstore.NewSettingsStore(db), sqlDB.Close, nil

	case config.StoreGAE:
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("datastore client: %w", err)
		}
		log.Info().
			Str("project", cfg.DatastoreProject).
			Str("namespace", cfg.DatastoreNamespace).
			Msg("Using Datastore settings store")
		return gae.NewSettingsStore(client, cfg.DatastoreNamespace), client.Close, nil

	case config.StoreKeyring:
		fallback, err := fs.NewFSSettingsStore("")
		if err != nil {
			return nil, nil, err
		}
		s := keyring.New(cfg.StoreLocation, fallback)
		if s == tt.SettingsStore(fallback) {
			log.Warn().Str("path", fallback.Path()).Msg("Keychain unavailable, falling back to file settings store")
		} else {
			log.Info().Msg("Using keychain settings store")
		}
		return s, noopCloser, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
