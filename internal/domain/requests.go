package domain

// Запросы на изменение сущностей. Теги validate проверяет пакет validation.

// CreateCustomerRequest — данные нового клиента.
type CreateCustomerRequest struct {
	FirstName string `json:"firstName" validate:"required,notblank,max=100"`
	LastName  string `json:"lastName" validate:"required,notblank,max=100"`
	Phone     string `json:"phone" validate:"required,notblank,max=40"`
	Email     string `json:"email" validate:"required,notblank,max=255,email"`
}

// UpdateCustomerRequest полностью заменяет изменяемые поля клиента ID.
type UpdateCustomerRequest struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName" validate:"required,notblank,max=100"`
	LastName  string `json:"lastName" validate:"required,notblank,max=100"`
	Phone     string `json:"phone" validate:"required,notblank,max=40"`
	Email     string `json:"email" validate:"required,notblank,max=255,email"`
}

// CreateProductRequest — данные нового товара.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"required,notblank,max=500"`
	SKU         string `json:"sku" validate:"required,notblank,max=40"`
}

// UpdateProductRequest полностью заменяет изменяемые поля товара ID.
type UpdateProductRequest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"required,notblank,max=500"`
	SKU         string `json:"sku" validate:"required,notblank,max=40"`
}

// UpdateOrderRequest переводит заказ пары клиент/товар в новый статус.
type UpdateOrderRequest struct {
	CustomerID int64       `json:"customerId"`
	ProductID  int64       `json:"productId"`
	Status     OrderStatus `json:"status" validate:"required,order_status,ne=Pending"`
}

// Key возвращает идентификатор заказа, к которому относится запрос.
func (r UpdateOrderRequest) Key() OrderKey {
	return OrderKey{CustomerID: r.CustomerID, ProductID: r.ProductID}
}
