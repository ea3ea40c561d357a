package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

var (
	errTxDone      = errors.New("memory: transaction has already been committed or rolled back")
	errStoreClosed = errors.New("memory: store is closed")
)

// state — содержимое хранилища. Связи между сущностями хранятся только ключами.
type state struct {
	customers      map[int64]domain.Customer
	products       map[int64]domain.Product
	orders         map[domain.OrderKey]domain.Order
	lastCustomerID int64
	lastProductID  int64
}

func newState() state {
	return state{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		orders:    make(map[domain.OrderKey]domain.Order),
	}
}

func (s state) clone() state {
	cp := state{
		customers:      make(map[int64]domain.Customer, len(s.customers)),
		products:       make(map[int64]domain.Product, len(s.products)),
		orders:         make(map[domain.OrderKey]domain.Order, len(s.orders)),
		lastCustomerID: s.lastCustomerID,
		lastProductID:  s.lastProductID,
	}
	for id, c := range s.customers {
		cp.customers[id] = c
	}
	for id, p := range s.products {
		cp.products[id] = p
	}
	for key, o := range s.orders {
		cp.orders[key] = cloneOrder(o)
	}
	return cp
}

func cloneOrder(o domain.Order) domain.Order {
	if o.UpdatedAt != nil {
		updated := *o.UpdatedAt
		o.UpdatedAt = &updated
	}
	return o
}

// Store — транзакционное in-memory хранилище для локальной разработки и тестов.
// Транзакция читает снимок состояния, сделанный в Begin. Первая запись захватывает
// единственный токен записи и перечитывает снимок, поэтому записи выполняются
// последовательно и проверяют ограничения по зафиксированному состоянию.
// Чтение и Ping не ждут открытых транзакций.
type Store struct {
	mu     sync.RWMutex
	state  state
	closed bool
	writer chan struct{}
}

// NewStore возвращает пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState(), writer: make(chan struct{}, 1)}
}

// Begin открывает транзакцию. Вызывающий обязан завершить её через Commit или Rollback.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return &tx{store: s, state: snapshot}, nil
}

func (s *Store) snapshot() (state, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return state{}, errStoreClosed
	}
	return s.state.clone(), nil
}

// Ping сообщает об ошибке только для закрытого хранилища.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return nil
}

// Close запрещает новые транзакции. Открытые транзакции можно завершить.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type tx struct {
	store   *Store
	state   state
	writing bool
	done    bool
}

// beginWrite захватывает токен записи при первой записи транзакции и заменяет снимок
// зафиксированным состоянием. Ожидание токена прерывается отменой ctx.
func (t *tx) beginWrite(ctx context.Context) error {
	if t.writing {
		return nil
	}

	select {
	case t.store.writer <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	snapshot, err := t.store.snapshot()
	if err != nil {
		<-t.store.writer
		return err
	}
	t.state = snapshot
	t.writing = true
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	if !t.writing {
		return nil
	}

	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	<-t.store.writer
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.writing {
		<-t.store.writer
	}
	return nil
}

// checkWrite проверяет транзакцию и захватывает токен записи.
func (t *tx) checkWrite(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	return t.beginWrite(ctx)
}

func (t *tx) check(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	return ctx.Err()
}

func (t *tx) InsertCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := t.checkWrite(ctx); err != nil {
		return domain.Customer{}, err
	}
	if err := t.checkEmailUnique(customer.Email, 0); err != nil {
		return domain.Customer{}, err
	}

	t.state.lastCustomerID++
	customer.ID = t.state.lastCustomerID
	t.state.customers[customer.ID] = customer
	return customer, nil
}

func (t *tx) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if err := t.check(ctx); err != nil {
		return domain.Customer{}, err
	}
	customer, ok := t.state.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return customer, nil
}

func (t *tx) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	result := make([]domain.Customer, 0, len(t.state.customers))
	for _, customer := range t.state.customers {
		if customer.MatchesSearch(search) {
			result = append(result, customer)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return domain.CustomerLess(result[i], result[j])
	})
	return result, nil
}

func (t *tx) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	if err := t.checkWrite(ctx); err != nil {
		return err
	}
	if _, ok := t.state.customers[customer.ID]; !ok {
		return domain.ErrNotFound
	}
	if err := t.checkEmailUnique(customer.Email, customer.ID); err != nil {
		return err
	}
	t.state.customers[customer.ID] = customer
	return nil
}

func (t *tx) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	if err := t.checkWrite(ctx); err != nil {
		return 0, err
	}
	if _, ok := t.state.customers[id]; !ok {
		return 0, nil
	}
	if t.hasOrders(domain.OrderFilter{CustomerID: id}) {
		return 0, &domain.ConstraintError{
			Constraint: domain.ConstraintOrderCustomerFK,
			Kind:       domain.ConstraintRestrict,
		}
	}
	delete(t.state.customers, id)
	return 1, nil
}

// checkEmailUnique проверяет уникальность email без учёта регистра, исключая клиента selfID.
func (t *tx) checkEmailUnique(email string, selfID int64) error {
	for id, existing := range t.state.customers {
		if id != selfID && strings.EqualFold(existing.Email, email) {
			return &domain.ConstraintError{
				Constraint: domain.ConstraintCustomerEmail,
				Kind:       domain.ConstraintUnique,
			}
		}
	}
	return nil
}

func (t *tx) InsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := t.checkWrite(ctx); err != nil {
		return domain.Product{}, err
	}
	t.state.lastProductID++
	product.ID = t.state.lastProductID
	t.state.products[product.ID] = product
	return product, nil
}

func (t *tx) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if err := t.check(ctx); err != nil {
		return domain.Product{}, err
	}
	product, ok := t.state.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return product, nil
}

func (t *tx) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	result := make([]domain.Product, 0, len(t.state.products))
	for _, product := range t.state.products {
		if product.MatchesSearch(search) {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return domain.ProductLess(result[i], result[j])
	})
	return result, nil
}

func (t *tx) UpdateProduct(ctx context.Context, product domain.Product) error {
	if err := t.checkWrite(ctx); err != nil {
		return err
	}
	if _, ok := t.state.products[product.ID]; !ok {
		return domain.ErrNotFound
	}
	t.state.products[product.ID] = product
	return nil
}

func (t *tx) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	if err := t.checkWrite(ctx); err != nil {
		return 0, err
	}
	if _, ok := t.state.products[id]; !ok {
		return 0, nil
	}
	if t.hasOrders(domain.OrderFilter{ProductID: id}) {
		return 0, &domain.ConstraintError{
			Constraint: domain.ConstraintOrderProductFK,
			Kind:       domain.ConstraintRestrict,
		}
	}
	delete(t.state.products, id)
	return 1, nil
}

func (t *tx) InsertOrder(ctx context.Context, order domain.Order) error {
	if err := t.checkWrite(ctx); err != nil {
		return err
	}
	if _, ok := t.state.customers[order.CustomerID]; !ok {
		return &domain.ConstraintError{Constraint: domain.ConstraintOrderCustomerFK, Kind: domain.ConstraintForeignKey}
	}
	if _, ok := t.state.products[order.ProductID]; !ok {
		return &domain.ConstraintError{Constraint: domain.ConstraintOrderProductFK, Kind: domain.ConstraintForeignKey}
	}
	if _, exists := t.state.orders[order.Key()]; exists {
		return &domain.ConstraintError{Constraint: domain.ConstraintOrderKey, Kind: domain.ConstraintUnique}
	}
	t.state.orders[order.Key()] = cloneOrder(order)
	return nil
}

func (t *tx) GetOrder(ctx context.Context, key domain.OrderKey) (domain.Order, error) {
	if err := t.check(ctx); err != nil {
		return domain.Order{}, err
	}
	order, ok := t.state.orders[key]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (t *tx) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0)
	for _, order := range t.state.orders {
		if filter.Match(order) {
			result = append(result, cloneOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return domain.OrderLess(result[i], result[j])
	})
	return result, nil
}

// UpdateOrder меняет только статус и время изменения; дата создания неизменна.
func (t *tx) UpdateOrder(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	if err := t.checkWrite(ctx); err != nil {
		return err
	}
	current, ok := t.state.orders[order.Key()]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != from {
		return domain.ErrOrderStatusChanged
	}
	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	t.state.orders[order.Key()] = cloneOrder(current)
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, key domain.OrderKey) (int64, error) {
	if err := t.checkWrite(ctx); err != nil {
		return 0, err
	}
	if _, ok := t.state.orders[key]; !ok {
		return 0, nil
	}
	delete(t.state.orders, key)
	return 1, nil
}

func (t *tx) hasOrders(filter domain.OrderFilter) bool {
	for _, order := range t.state.orders {
		if filter.Match(order) {
			return true
		}
	}
	return false
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*tx)(nil)
)
