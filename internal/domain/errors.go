package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound возвращается, если сущность с заданным идентификатором отсутствует.
	ErrNotFound = errors.New("entity not found")
	// ErrValidation — запрос нарушает правила полей.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition — недопустимое изменение значения (статус заказа).
	ErrInvalidTransition = errors.New("invalid update")
	// ErrConstraintViolation — хранилище отклонило запись из-за ограничения уникальности или внешнего ключа.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInternal — прочие сбои; детали не выдаются наружу.
	ErrInternal = errors.New("internal error")
	// ErrOrderStatusChanged возвращается хранилищем, если статус заказа изменился
	// после чтения. Наружу не выдаётся: сервис перечитывает заказ.
	ErrOrderStatusChanged = errors.New("order status changed concurrently")
)

// EntityType — имя типа сущности в сообщениях об ошибках.
type EntityType string

const (
	EntityCustomer EntityType = "Customer"
	EntityProduct  EntityType = "Product"
	EntityOrder    EntityType = "Order"
)

// NotFoundError сообщает, какую сущность и по каким идентификаторам искали.
type NotFoundError struct {
	Entity EntityType
	IDs    []int64
}

// NewNotFoundError создаёт ошибку отсутствия сущности.
func NewNotFoundError(entity EntityType, ids ...int64) *NotFoundError {
	return &NotFoundError{Entity: entity, IDs: ids}
}

func (e *NotFoundError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("Entity of type %s with ID(s) %s could not be found", e.Entity, strings.Join(ids, ", "))
}

// Is позволяет сравнивать через errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Violation — нарушение одного правила одного поля.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError несёт полный список нарушений запроса.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidTransitionError описывает отклонённое изменение поля.
type InvalidTransitionError struct {
	Field string
	From  string
	To    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Cannot update %s from %s to %s", e.Field, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConstraintKind различает виды нарушенных ограничений.
type ConstraintKind string

const (
	// ConstraintUnique — нарушена уникальность (email клиента, пара клиент/товар заказа).
	ConstraintUnique ConstraintKind = "unique"
	// ConstraintForeignKey — заказ ссылается на несуществующего клиента или товар.
	ConstraintForeignKey ConstraintKind = "foreign_key"
	// ConstraintRestrict — удаление клиента или товара, на которого ссылаются заказы.
	ConstraintRestrict ConstraintKind = "restrict"
)

// Имена ограничений схемы.
const (
	ConstraintCustomerEmail   = "UQ_Customer_Email"
	ConstraintOrderKey        = "PK_Orders"
	ConstraintOrderCustomerFK = "FK_Orders_CustomerId"
	ConstraintOrderProductFK  = "FK_Orders_ProductId"
)

// ConstraintError — отказ хранилища из-за ограничения целостности.
type ConstraintError struct {
	Constraint string
	Kind       ConstraintKind
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated (%s)", e.Constraint, e.Kind)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// InternalError скрывает причину сбоя в сообщении, но сохраняет её для errors.Is/As и логов.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return "internal error during " + e.Op
}

func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}

// IsNotFound проверяет, что сущность не найдена.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, что запрос отклонён валидацией.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidTransition проверяет, что переход статуса запрещён.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsConstraintViolation проверяет, что нарушено ограничение хранилища.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsClassified сообщает, относится ли ошибка к одному из известных видов.
func IsClassified(err error) bool {
	return IsNotFound(err) || IsValidation(err) || IsInvalidTransition(err) || IsConstraintViolation(err)
}

// Classify возвращает короткое имя вида ошибки (используется в метриках).
func Classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation"
	case IsInvalidTransition(err):
		return "invalid_transition"
	case IsConstraintViolation(err):
		return "constraint"
	default:
		return "internal"
	}
}
