package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/salesrepo/internal/health"
	"github.com/vladislavdragonenkov/salesrepo/internal/storage/memory"
	"github.com/vladislavdragonenkov/salesrepo/internal/storage/postgres"
)

// runtimeDependencies — хранилище, выбранное конфигурацией, и его проверка здоровья.
type runtimeDependencies struct {
	store          domain.Store
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver.
// Для PostgreSQL при включённом PostgresAutoMigrate применяется схема.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.WithField("storage", StorageDriverMemory).Info("storage initialized")
		return &runtimeDependencies{
			store:          store,
			storageChecker: healthcheck.NewPingChecker("storage", store, healthcheck.DefaultCheckTimeout),
			closeFn:        store.Close,
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage requires a DSN")
		}

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply schema: %w", err)
			}
			status, err := store.MigrationStatus(ctx)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("read schema status: %w", err)
			}
			logger.WithFields(log.Fields{
				"schema_version": status.Version,
				"applied":        status.Applied,
			}).Info("schema is up to date")
		}

		logger.WithField("storage", StorageDriverPostgres).Info("storage initialized")
		return &runtimeDependencies{
			store:          store,
			storageChecker: healthcheck.NewPingChecker("storage", store, healthcheck.DefaultCheckTimeout),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
