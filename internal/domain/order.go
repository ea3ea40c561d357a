package domain

import (
	"fmt"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — начальный статус, в нём создаётся каждый заказ.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered — заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled — заказ отменён до отправки (терминальный статус).
	OrderStatusCancelled OrderStatus = "Cancelled"
	// OrderStatusReturned — заказ возвращён после доставки (терминальный статус).
	OrderStatusReturned OrderStatus = "Returned"
)

// orderStatusTransitions — таблица допустимых переходов статуса.
// Не изменяется после инициализации пакета.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {OrderStatusReturned},
	OrderStatusCancelled: {},
	OrderStatusReturned:  {},
}

// OrderStatuses возвращает все статусы в порядке жизненного цикла.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusReturned,
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// AllowedTransitions возвращает копию множества статусов, в которые можно перейти из s.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	allowed := orderStatusTransitions[s]
	result := make([]OrderStatus, len(allowed))
	copy(result, allowed)
	return result
}

// CanTransitionTo сообщает, разрешён ли переход s → to.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет допустимых переходов.
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderStatusTransitions[s]) == 0
}

// ParseOrderStatus разбирает имя статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return status, nil
}

// CheckTransition классифицирует переход статуса заказа.
// Возвращает *InvalidTransitionError, если to не входит в допустимые переходы из from.
func CheckTransition(from, to OrderStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return &InvalidTransitionError{
		Field: OrderStatusField,
		From:  string(from),
		To:    string(to),
	}
}

// OrderStatusField — имя поля, которое фигурирует в ошибках перехода.
const OrderStatusField = "Status"

// OrderKey — составной идентификатор заказа: не больше одного заказа на пару клиент/товар.
type OrderKey struct {
	CustomerID int64
	ProductID  int64
}

// Order связывает клиента и товар.
type Order struct {
	CustomerID int64
	ProductID  int64
	Status     OrderStatus
	CreatedAt  time.Time
	// UpdatedAt пуст до первого перехода статуса.
	UpdatedAt *time.Time
}

// Key возвращает составной идентификатор заказа.
func (o Order) Key() OrderKey {
	return OrderKey{CustomerID: o.CustomerID, ProductID: o.ProductID}
}

// Transition переводит заказ в статус to и фиксирует время перехода.
// При недопустимом переходе заказ не изменяется.
func (o *Order) Transition(to OrderStatus, at time.Time) error {
	if err := CheckTransition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = &at
	return nil
}

// NewOrder создаёт заказ в начальном статусе.
func NewOrder(customerID, productID int64, createdAt time.Time) Order {
	return Order{
		CustomerID: customerID,
		ProductID:  productID,
		Status:     OrderStatusPending,
		CreatedAt:  createdAt,
	}
}

// OrderFilter ограничивает выборку заказов; нулевое значение поля означает «любой».
type OrderFilter struct {
	CustomerID int64
	ProductID  int64
	// CustomerIDs и ProductIDs ограничивают выборку множеством ключей; пустой срез означает «любой».
	CustomerIDs []int64
	ProductIDs  []int64
}

// Match сообщает, попадает ли заказ под фильтр.
func (f OrderFilter) Match(o Order) bool {
	if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
		return false
	}
	if f.ProductID != 0 && o.ProductID != f.ProductID {
		return false
	}
	if len(f.CustomerIDs) > 0 && !containsID(f.CustomerIDs, o.CustomerID) {
		return false
	}
	if len(f.ProductIDs) > 0 && !containsID(f.ProductIDs, o.ProductID) {
		return false
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// OrderLess упорядочивает заказы по клиенту, затем по товару.
func OrderLess(a, b Order) bool {
	if a.CustomerID != b.CustomerID {
		return a.CustomerID < b.CustomerID
	}
	return a.ProductID < b.ProductID
}
