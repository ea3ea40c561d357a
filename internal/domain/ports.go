package domain

import (
	"context"
	"time"
)

// Store выдаёт независимые транзакционные дескрипторы хранилища.
type Store interface {
	// Begin открывает дескриптор для одной логической операции.
	Begin(ctx context.Context) (Tx, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	Close() error
}

// Tx — дескриптор хранилища в рамках одной операции.
// Изменения видны другим только после Commit; Rollback после Commit ничего не делает.
type Tx interface {
	// InsertCustomer сохраняет клиента и возвращает его с присвоенным ID.
	InsertCustomer(ctx context.Context, customer Customer) (Customer, error)
	// GetCustomer возвращает клиента или ErrNotFound.
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	// ListCustomers возвращает клиентов, отфильтрованных по search, в порядке CustomerLess.
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	// UpdateCustomer перезаписывает изменяемые поля или возвращает ErrNotFound.
	UpdateCustomer(ctx context.Context, customer Customer) error
	// DeleteCustomer удаляет клиента и возвращает число затронутых строк.
	DeleteCustomer(ctx context.Context, id int64) (int64, error)

	InsertProduct(ctx context.Context, product Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, search string) ([]Product, error)
	UpdateProduct(ctx context.Context, product Product) error
	DeleteProduct(ctx context.Context, id int64) (int64, error)

	// InsertOrder сохраняет заказ; повтор пары клиент/товар и висячие ссылки дают ConstraintError.
	InsertOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, key OrderKey) (Order, error)
	// ListOrders возвращает заказы под фильтром в порядке OrderLess.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	// UpdateOrder сохраняет статус и время изменения заказа, если текущий статус равен from.
	// Иначе возвращает ErrOrderStatusChanged и не меняет заказ.
	UpdateOrder(ctx context.Context, order Order, from OrderStatus) error
	DeleteOrder(ctx context.Context, key OrderKey) (int64, error)

	Commit() error
	Rollback() error
}

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает текущее время в UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc адаптирует функцию к интерфейсу Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
