package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

func TestTx_PostgresCustomerLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	var created domain.Customer
	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		var err error
		created, err = tx.InsertCustomer(ctx, domain.Customer{
			FirstName: "Ada", LastName: "Lovelace", Phone: "+44 1", Email: "ada@example.com",
		})
		if err != nil {
			t.Fatalf("insert customer: %v", err)
		}
	})
	if created.ID == 0 {
		t.Fatal("expected generated id")
	}

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		created.Phone = "+44 2"
		if err := tx.UpdateCustomer(ctx, created); err != nil {
			t.Fatalf("update customer: %v", err)
		}
		stored, err := tx.GetCustomer(ctx, created.ID)
		if err != nil {
			t.Fatalf("get customer: %v", err)
		}
		if stored != created {
			t.Fatalf("unexpected customer: %+v", stored)
		}

		found, err := tx.ListCustomers(ctx, "LOVE")
		if err != nil {
			t.Fatalf("list customers: %v", err)
		}
		if len(found) != 1 || found[0].ID != created.ID {
			t.Fatalf("unexpected search result: %+v", found)
		}
	})

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		affected, err := tx.DeleteCustomer(ctx, created.ID)
		if err != nil || affected != 1 {
			t.Fatalf("delete customer: affected=%d err=%v", affected, err)
		}
		affected, err = tx.DeleteCustomer(ctx, created.ID)
		if err != nil || affected != 0 {
			t.Fatalf("second delete: affected=%d err=%v", affected, err)
		}
		if _, err := tx.GetCustomer(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTx_PostgresUniqueEmailIsCaseInsensitive(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		if _, err := tx.InsertCustomer(ctx, domain.Customer{
			FirstName: "Ada", LastName: "Lovelace", Phone: "1", Email: "ada@example.com",
		}); err != nil {
			t.Fatalf("insert customer: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.InsertCustomer(ctx, domain.Customer{
		FirstName: "Other", LastName: "Person", Phone: "2", Email: "ADA@example.com",
	})
	var constraintErr *domain.ConstraintError
	if !errors.As(err, &constraintErr) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if constraintErr.Constraint != domain.ConstraintCustomerEmail || constraintErr.Kind != domain.ConstraintUnique {
		t.Fatalf("unexpected constraint error: %+v", constraintErr)
	}
}

func TestTx_PostgresOrderLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var customer domain.Customer
	var product domain.Product
	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		var err error
		customer, err = tx.InsertCustomer(ctx, domain.Customer{FirstName: "A", LastName: "B", Phone: "1", Email: "a@b.c"})
		if err != nil {
			t.Fatalf("insert customer: %v", err)
		}
		product, err = tx.InsertProduct(ctx, domain.Product{Name: "Lamp", Description: "LED", SKU: "L-1"})
		if err != nil {
			t.Fatalf("insert product: %v", err)
		}
		if err := tx.InsertOrder(ctx, domain.NewOrder(customer.ID, product.ID, createdAt)); err != nil {
			t.Fatalf("insert order: %v", err)
		}
	})

	key := domain.OrderKey{CustomerID: customer.ID, ProductID: product.ID}
	shippedAt := createdAt.Add(time.Hour)
	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		order, err := tx.GetOrder(ctx, key)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if order.Status != domain.OrderStatusPending || !order.CreatedAt.Equal(createdAt) || order.UpdatedAt != nil {
			t.Fatalf("unexpected new order: %+v", order)
		}
		if err := order.Transition(domain.OrderStatusShipped, shippedAt); err != nil {
			t.Fatalf("transition: %v", err)
		}
		if err := tx.UpdateOrder(ctx, order, domain.OrderStatusPending); err != nil {
			t.Fatalf("update order: %v", err)
		}
	})

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		orders, err := tx.ListOrders(ctx, domain.OrderFilter{CustomerID: customer.ID})
		if err != nil {
			t.Fatalf("list orders: %v", err)
		}
		if len(orders) != 1 {
			t.Fatalf("expected 1 order, got %d", len(orders))
		}
		if orders[0].Status != domain.OrderStatusShipped || orders[0].UpdatedAt == nil || !orders[0].UpdatedAt.Equal(shippedAt) {
			t.Fatalf("unexpected order after update: %+v", orders[0])
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.DeleteCustomer(ctx, customer.ID)
	var constraintErr *domain.ConstraintError
	if !errors.As(err, &constraintErr) || constraintErr.Kind != domain.ConstraintRestrict {
		t.Fatalf("expected restrict violation, got %v", err)
	}
}

func seedOrderForIntegrationTest(t *testing.T, store *Store, email string, createdAt time.Time) domain.OrderKey {
	t.Helper()

	var key domain.OrderKey
	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		customer, err := tx.InsertCustomer(ctx, domain.Customer{FirstName: "C", LastName: "D", Phone: "2", Email: email})
		if err != nil {
			t.Fatalf("insert customer: %v", err)
		}
		product, err := tx.InsertProduct(ctx, domain.Product{Name: "Desk", Description: "Oak", SKU: "D-" + email})
		if err != nil {
			t.Fatalf("insert product: %v", err)
		}
		if err := tx.InsertOrder(ctx, domain.NewOrder(customer.ID, product.ID, createdAt)); err != nil {
			t.Fatalf("insert order: %v", err)
		}
		key = domain.OrderKey{CustomerID: customer.ID, ProductID: product.ID}
	})
	return key
}

func TestTx_PostgresConcurrentStatusUpdates(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	createdAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	key := seedOrderForIntegrationTest(t, store, "race@example.com", createdAt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin first: %v", err)
	}
	defer func() { _ = first.Rollback() }()
	second, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}
	defer func() { _ = second.Rollback() }()

	shipped, err := first.GetOrder(ctx, key)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	cancelled, err := second.GetOrder(ctx, key)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if shipped.Status != domain.OrderStatusPending || cancelled.Status != domain.OrderStatusPending {
		t.Fatalf("both transactions must read Pending, got %s and %s", shipped.Status, cancelled.Status)
	}

	if err := shipped.Transition(domain.OrderStatusShipped, createdAt.Add(time.Hour)); err != nil {
		t.Fatalf("transition to shipped: %v", err)
	}
	if err := cancelled.Transition(domain.OrderStatusCancelled, createdAt.Add(2*time.Hour)); err != nil {
		t.Fatalf("transition to cancelled: %v", err)
	}

	if err := first.UpdateOrder(ctx, shipped, domain.OrderStatusPending); err != nil {
		t.Fatalf("first update: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- second.UpdateOrder(ctx, cancelled, domain.OrderStatusPending)
	}()

	select {
	case err := <-done:
		t.Fatalf("second update must wait for the row lock, returned %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := first.Commit(); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	if err := <-done; !errors.Is(err, domain.ErrOrderStatusChanged) {
		t.Fatalf("expected ErrOrderStatusChanged, got %v", err)
	}

	current, err := second.GetOrder(ctx, key)
	if err != nil {
		t.Fatalf("reload in second: %v", err)
	}
	if current.Status != domain.OrderStatusShipped {
		t.Fatalf("expected committed Shipped to survive, got %s", current.Status)
	}
	if err := second.Rollback(); err != nil {
		t.Fatalf("second rollback: %v", err)
	}

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		missing := domain.NewOrder(key.CustomerID+1000, key.ProductID, createdAt)
		if err := tx.UpdateOrder(ctx, missing, domain.OrderStatusPending); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a missing order, got %v", err)
		}
	})
}

func TestTx_PostgresListOrdersByIDSets(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	createdAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	first := seedOrderForIntegrationTest(t, store, "first@example.com", createdAt)
	second := seedOrderForIntegrationTest(t, store, "second@example.com", createdAt)

	inTx(t, store, func(ctx context.Context, tx domain.Tx) {
		all, err := tx.ListOrders(ctx, domain.OrderFilter{})
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(all))
		}

		byCustomer, err := tx.ListOrders(ctx, domain.OrderFilter{CustomerIDs: []int64{second.CustomerID}})
		if err != nil {
			t.Fatalf("list by customers: %v", err)
		}
		if len(byCustomer) != 1 || byCustomer[0].Key() != second {
			t.Fatalf("unexpected orders by customer set: %+v", byCustomer)
		}

		byProduct, err := tx.ListOrders(ctx, domain.OrderFilter{ProductIDs: []int64{first.ProductID, second.ProductID + 1000}})
		if err != nil {
			t.Fatalf("list by products: %v", err)
		}
		if len(byProduct) != 1 || byProduct[0].Key() != first {
			t.Fatalf("unexpected orders by product set: %+v", byProduct)
		}
	})
}
