package sales

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	"github.com/vladislavdragonenkov/salesrepo/internal/messaging/kafka"
)

// OrderService управляет заказами. Заказ идентифицируется парой клиент/товар.
type OrderService struct {
	base
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(deps Deps) *OrderService {
	return &OrderService{base: newBase(domain.EntityOrder, "order-service", deps)}
}

// Create создаёт заказ в статусе Pending с датой создания из часов сервиса.
// Отсутствующий клиент или товар даёт NotFound, повторный заказ той же пары — ConstraintViolation.
func (s *OrderService) Create(ctx context.Context, customerID, productID int64) (OrderView, error) {
	var view OrderView
	err := s.run(ctx, "create", func(ctx context.Context, tx domain.Tx) error {
		rel := newRelations(tx)
		if _, err := rel.customer(ctx, customerID); err != nil {
			return err
		}
		if _, err := rel.product(ctx, productID); err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, domain.NewOrder(customerID, productID, s.clock.Now())); err != nil {
			return err
		}

		created, err := tx.GetOrder(ctx, domain.OrderKey{CustomerID: customerID, ProductID: productID})
		if err != nil {
			return notFound(err, domain.EntityOrder, customerID, productID)
		}
		view, err = rel.order(ctx, created)
		return err
	})
	if err != nil {
		return OrderView{}, err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"product_id":  productID,
	}).Debug("order created")
	s.publish(kafka.EventTypeOrderCreated, orderKey(domain.OrderKey{CustomerID: customerID, ProductID: productID}), view)
	return view, nil
}

// Get возвращает заказ с клиентом и товаром.
func (s *OrderService) Get(ctx context.Context, customerID, productID int64) (OrderView, error) {
	var view OrderView
	err := s.run(ctx, "get", func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.GetOrder(ctx, domain.OrderKey{CustomerID: customerID, ProductID: productID})
		if err != nil {
			return notFound(err, domain.EntityOrder, customerID, productID)
		}
		view, err = newRelations(tx).order(ctx, order)
		return err
	})
	if err != nil {
		return OrderView{}, err
	}
	return view, nil
}

// List возвращает все заказы, упорядоченные по клиенту и товару.
func (s *OrderService) List(ctx context.Context) ([]OrderView, error) {
	var views []OrderView
	err := s.run(ctx, "list", func(ctx context.Context, tx domain.Tx) error {
		orders, err := tx.ListOrders(ctx, domain.OrderFilter{})
		if err != nil {
			return err
		}

		rel := newRelations(tx)
		views = make([]OrderView, 0, len(orders))
		for _, o := range orders {
			view, err := rel.order(ctx, o)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Update переводит заказ в новый статус по таблице переходов. Недопустимый переход
// (в том числе в Pending или в неизвестный статус) не меняет заказ.
func (s *OrderService) Update(ctx context.Context, req domain.UpdateOrderRequest) (OrderView, error) {
	key := req.Key()

	var (
		view OrderView
		from domain.OrderStatus
	)
	err := s.run(ctx, "update", func(ctx context.Context, tx domain.Tx) error {
		var err error
		from, err = s.transition(ctx, tx, key, req.Status)
		if err != nil {
			return err
		}

		reloaded, err := tx.GetOrder(ctx, key)
		if err != nil {
			return notFound(err, domain.EntityOrder, key.CustomerID, key.ProductID)
		}
		view, err = newRelations(tx).order(ctx, reloaded)
		return err
	})
	if err != nil {
		return OrderView{}, err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": key.CustomerID,
		"product_id":  key.ProductID,
		"from":        from,
		"to":          view.Status,
	}).Debug("order status changed")
	s.publish(kafka.EventTypeOrderStatusChanged, orderKey(key), statusChange{
		From:  string(from),
		Order: view,
	})
	return view, nil
}

// Delete удаляет заказ.
func (s *OrderService) Delete(ctx context.Context, customerID, productID int64) error {
	key := domain.OrderKey{CustomerID: customerID, ProductID: productID}
	err := s.run(ctx, "delete", func(ctx context.Context, tx domain.Tx) error {
		affected, err := tx.DeleteOrder(ctx, key)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.NewNotFoundError(domain.EntityOrder, customerID, productID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"product_id":  productID,
	}).Debug("order deleted")
	s.publish(kafka.EventTypeOrderDeleted, orderKey(key), map[string]int64{
		"customerId": customerID,
		"productId":  productID,
	})
	return nil
}

// maxStatusUpdateAttempts ограничивает перечитывания заказа, статус которого меняют конкурентно.
const maxStatusUpdateAttempts = 3

// transition применяет таблицу переходов к текущему статусу заказа и сохраняет результат.
// Если статус изменился после чтения, заказ перечитывается и переход проверяется заново.
func (s *OrderService) transition(ctx context.Context, tx domain.Tx, key domain.OrderKey, to domain.OrderStatus) (domain.OrderStatus, error) {
	for attempt := 1; attempt <= maxStatusUpdateAttempts; attempt++ {
		order, err := tx.GetOrder(ctx, key)
		if err != nil {
			return "", notFound(err, domain.EntityOrder, key.CustomerID, key.ProductID)
		}

		from := order.Status
		if err := order.Transition(to, s.clock.Now()); err != nil {
			return "", err
		}

		err = tx.UpdateOrder(ctx, order, from)
		if err == nil {
			return from, nil
		}
		if !errors.Is(err, domain.ErrOrderStatusChanged) {
			return "", notFound(err, domain.EntityOrder, key.CustomerID, key.ProductID)
		}
		s.logger.WithFields(log.Fields{
			"customer_id": key.CustomerID,
			"product_id":  key.ProductID,
			"from":        from,
			"attempt":     attempt,
		}).Debug("order status changed concurrently, re-reading")
	}
	return "", fmt.Errorf("order %s: status kept changing after %d attempts", orderKey(key), maxStatusUpdateAttempts)
}

// statusChange — содержимое события смены статуса заказа.
type statusChange struct {
	From  string    `json:"from"`
	Order OrderView `json:"order"`
}
