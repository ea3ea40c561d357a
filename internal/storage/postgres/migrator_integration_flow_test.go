package postgres

import (
	"context"
	"testing"
	"time"
)

func TestMigrator_PostgresUpIsIdempotent(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	latest := migrations[len(migrations)-1].Version

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up all: %v", err)
	}
	status, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status after up all: %v", err)
	}
	if status.Version != latest || status.Applied != len(migrations) {
		t.Fatalf("unexpected status after up all: %+v", status)
	}

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("idempotent migrate up: %v", err)
	}
	again, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status after idempotent up: %v", err)
	}
	if again != status {
		t.Fatalf("status changed after idempotent up: %+v -> %+v", status, again)
	}
}

func TestMigrator_NilGuards(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := nilStore.MigrateUp(ctx, 0); err == nil {
		t.Fatal("expected error for nil store MigrateUp")
	}
	if _, err := nilStore.MigrationStatus(ctx); err == nil {
		t.Fatal("expected error for nil store MigrationStatus")
	}
	if _, err := nilStore.Begin(ctx); err == nil {
		t.Fatal("expected error for nil store Begin")
	}
}
