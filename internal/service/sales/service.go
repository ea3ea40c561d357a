// Package sales реализует операции над клиентами, товарами и заказами:
// валидация, поиск, изменение, сохранение и выдача проекций со связями.
// Каждая операция выполняется в собственной транзакции хранилища.
package sales

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	"github.com/vladislavdragonenkov/salesrepo/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesrepo/internal/metrics"
)

// EventPublisher публикует события об изменениях сущностей (kafka.Producer).
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Deps — долгоживущие зависимости сервисов. Обязательно только Store.
type Deps struct {
	Store     domain.Store
	Clock     domain.Clock
	Logger    *log.Entry
	Metrics   *metrics.ServiceMetrics
	Publisher EventPublisher
}

// base содержит общую для всех сервисов обвязку операций.
type base struct {
	entity    domain.EntityType
	store     domain.Store
	clock     domain.Clock
	logger    *log.Entry
	metrics   *metrics.ServiceMetrics
	publisher EventPublisher
}

func newBase(entity domain.EntityType, component string, deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", component)
	} else {
		logger = logger.WithField("component", component)
	}
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	return base{
		entity:    entity,
		store:     deps.Store,
		clock:     clock,
		logger:    logger,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
	}
}

// run выполняет fn в отдельной транзакции. Транзакция откатывается на любом пути выхода,
// кроме успешного Commit. Классифицированные ошибки возвращаются без изменений,
// остальные логируются и заменяются на InternalError.
func (b base) run(ctx context.Context, op string, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	done := b.metrics.OperationStarted(string(b.entity), op)
	defer func() { done(domain.Classify(err)) }()

	tx, err := b.store.Begin(ctx)
	if err != nil {
		return b.internal(op, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.logger.WithError(rbErr).WithField("operation", op).Warn("rollback failed")
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if domain.IsClassified(err) {
			return err
		}
		return b.internal(op, err)
	}

	if err := tx.Commit(); err != nil {
		if domain.IsConstraintViolation(err) {
			return err
		}
		return b.internal(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// rejected учитывает операцию, отклонённую до начала транзакции (валидацией).
func (b base) rejected(op string, err error) error {
	if !domain.IsClassified(err) {
		err = b.internal(op, err)
	}
	b.metrics.RecordOperation(string(b.entity), op, domain.Classify(err), 0)
	return err
}

func (b base) internal(op string, err error) error {
	fullOp := fmt.Sprintf("%s.%s", b.entity, op)
	b.logger.WithError(err).WithField("operation", fullOp).Error("operation failed")
	return &domain.InternalError{Op: fullOp, Err: err}
}

// publish отправляет событие после фиксации транзакции. Ошибка публикации
// не меняет результат операции.
func (b base) publish(eventType kafka.EventType, key string, payload interface{}) {
	if b.publisher == nil {
		return
	}

	event := kafka.NewEntityEvent(eventType, key, b.clock.Now(), payload)
	topic := eventType.Topic()
	err := b.publisher.PublishEvent(topic, key, event)
	b.metrics.RecordEventPublished(topic, err)
	if err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"key":        key,
		}).Warn("failed to publish event")
	}
}

// notFound заменяет голый domain.ErrNotFound хранилища на ошибку с типом сущности и ключом.
func notFound(err error, entity domain.EntityType, ids ...int64) error {
	var typed *domain.NotFoundError
	if errors.Is(err, domain.ErrNotFound) && !errors.As(err, &typed) {
		return domain.NewNotFoundError(entity, ids...)
	}
	return err
}

func entityKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

func orderKey(key domain.OrderKey) string {
	return fmt.Sprintf("%d:%d", key.CustomerID, key.ProductID)
}
