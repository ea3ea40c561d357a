package sales_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishEvent(topic string, key string, event interface{}) error {
	args := m.Called(topic, key, event)
	return args.Error(0)
}

type CustomerValidatorMock struct {
	mock.Mock
}

func (m *CustomerValidatorMock) CreateCustomer(req domain.CreateCustomerRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *CustomerValidatorMock) UpdateCustomer(req domain.UpdateCustomerRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

// brokenStore отказывает в каждой транзакции.
type brokenStore struct {
	err error
}

func (s brokenStore) Begin(context.Context) (domain.Tx, error) { return nil, s.err }
func (s brokenStore) Ping(context.Context) error              { return s.err }
func (s brokenStore) Close() error                            { return nil }

// testClock — управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// interleavedStore вызывает beforeUpdateOrder перед каждым UpdateOrder своих транзакций,
// чтобы вклинить конкурентное изменение между чтением и записью заказа.
// Фильтры ListOrders сохраняются в orderFilters.
type interleavedStore struct {
	domain.Store
	beforeUpdateOrder func(call int) error
	calls             int
	orderFilters      []domain.OrderFilter
}

func (s *interleavedStore) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &interleavedTx{Tx: tx, store: s}, nil
}

type interleavedTx struct {
	domain.Tx
	store *interleavedStore
}

func (t *interleavedTx) UpdateOrder(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	t.store.calls++
	if hook := t.store.beforeUpdateOrder; hook != nil {
		if err := hook(t.store.calls); err != nil {
			return err
		}
	}
	return t.Tx.UpdateOrder(ctx, order, from)
}

func (t *interleavedTx) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	t.store.orderFilters = append(t.store.orderFilters, filter)
	return t.Tx.ListOrders(ctx, filter)
}
