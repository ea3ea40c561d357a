// Package validation проверяет запросы на создание и изменение сущностей.
// Проверки чистые: никаких обращений к хранилищу.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

const (
	tagNotBlank    = "notblank"
	tagOrderStatus = "order_status"
)

// Validator проверяет запросы по правилам из тегов validate.
// Безопасен для конкурентного использования.
type Validator struct {
	validate *validator.Validate
}

// New создаёт валидатор с зарегистрированными правилами домена.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	// Ошибка регистрации возможна только при некорректном имени тега.
	if err := v.RegisterValidation(tagNotBlank, notBlank); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tagNotBlank, err))
	}
	if err := v.RegisterValidation(tagOrderStatus, knownOrderStatus); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tagOrderStatus, err))
	}

	return &Validator{validate: v}
}

// CreateCustomer проверяет запрос на создание клиента.
func (v *Validator) CreateCustomer(req domain.CreateCustomerRequest) error {
	return v.check(req)
}

// UpdateCustomer проверяет запрос на изменение клиента.
func (v *Validator) UpdateCustomer(req domain.UpdateCustomerRequest) error {
	return v.check(req)
}

// CreateProduct проверяет запрос на создание товара.
func (v *Validator) CreateProduct(req domain.CreateProductRequest) error {
	return v.check(req)
}

// UpdateProduct проверяет запрос на изменение товара.
func (v *Validator) UpdateProduct(req domain.UpdateProductRequest) error {
	return v.check(req)
}

// UpdateOrder проверяет, что целевой статус существует и не является начальным.
func (v *Validator) UpdateOrder(req domain.UpdateOrderRequest) error {
	return v.check(req)
}

func (v *Validator) check(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	violations := make([]domain.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, domain.Violation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return &domain.ValidationError{Violations: violations}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", tagNotBlank:
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case tagOrderStatus:
		return "must be one of " + joinStatuses(domain.OrderStatuses())
	case "ne":
		return "must not be " + fe.Param()
	default:
		return "is invalid"
	}
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func knownOrderStatus(fl validator.FieldLevel) bool {
	return domain.OrderStatus(fl.Field().String()).Valid()
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func joinStatuses(statuses []domain.OrderStatus) string {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
