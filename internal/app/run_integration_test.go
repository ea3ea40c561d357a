package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/salesrepo/internal/health"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestNew_MemoryServicesShareStore(t *testing.T) {
	application, err := New(context.Background(), DefaultConfig(), log.WithField("test", "app-new"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = application.Close() }()

	ctx := context.Background()
	customer, err := application.Customers.Create(ctx, domain.CreateCustomerRequest{
		FirstName: "A", LastName: "B", Phone: "1", Email: "a@b.com",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	product, err := application.Products.Create(ctx, domain.CreateProductRequest{
		Name: "N", Description: "D", SKU: "S",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	order, err := application.Orders.Create(ctx, customer.ID, product.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != string(domain.OrderStatusPending) {
		t.Fatalf("expected Pending order, got %s", order.Status)
	}

	if resp := application.Health.Evaluate(ctx); resp.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy app, got %+v", resp)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	if deps.store == nil {
		t.Fatal("postgres store must be initialized")
	}
	check := deps.storageChecker.Check(context.Background())
	if check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("SALES_POSTGRES_TEST_DSN"))
}
