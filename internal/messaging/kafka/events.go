package kafka

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип события
type EventType string

const (
	// Customer события
	EventTypeCustomerCreated EventType = "customer.created"
	EventTypeCustomerUpdated EventType = "customer.updated"
	EventTypeCustomerDeleted EventType = "customer.deleted"

	// Product события
	EventTypeProductCreated EventType = "product.created"
	EventTypeProductUpdated EventType = "product.updated"
	EventTypeProductDeleted EventType = "product.deleted"

	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDeleted       EventType = "order.deleted"
)

// Topics для Kafka
const (
	TopicCustomerEvents = "salesrepo.customer.events"
	TopicProductEvents  = "salesrepo.product.events"
	TopicOrderEvents    = "salesrepo.order.events"
)

// Entity возвращает тип сущности события: часть имени до точки.
func (t EventType) Entity() string {
	entity, _, _ := strings.Cut(string(t), ".")
	return entity
}

// Topic возвращает топик, в который публикуются события этого типа.
func (t EventType) Topic() string {
	switch t.Entity() {
	case "customer":
		return TopicCustomerEvents
	case "product":
		return TopicProductEvents
	default:
		return TopicOrderEvents
	}
}

// EntityEvent — событие об изменении сущности. Payload содержит состояние
// сущности после изменения (для удаления — её ключ).
type EntityEvent struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	Entity     string      `json:"entity"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload,omitempty"`
}

// NewEntityEvent создает событие с новым идентификатором.
func NewEntityEvent(eventType EventType, key string, occurredAt time.Time, payload interface{}) *EntityEvent {
	return &EntityEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Entity:     eventType.Entity(),
		Key:        key,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}
