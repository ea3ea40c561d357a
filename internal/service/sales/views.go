package sales

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

// CustomerSummary — данные клиента без связей.
type CustomerSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// CustomerView — клиент с его заказами; у каждого заказа раскрыт товар.
type CustomerView struct {
	CustomerSummary
	Orders []OrderView `json:"orders"`
}

// ProductSummary — данные товара без связей.
type ProductSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
}

// ProductView — товар с его заказами; у каждого заказа раскрыт клиент.
type ProductView struct {
	ProductSummary
	Orders []OrderView `json:"orders"`
}

// OrderView — заказ. Customer и Product — копии связанных сущностей, nil если не загружены.
type OrderView struct {
	CustomerID int64            `json:"customerId"`
	ProductID  int64            `json:"productId"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  *time.Time       `json:"updatedAt"`
	Customer   *CustomerSummary `json:"customer,omitempty"`
	Product    *ProductSummary  `json:"product,omitempty"`
}

func customerSummary(c domain.Customer) CustomerSummary {
	return CustomerSummary{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone, Email: c.Email}
}

func productSummary(p domain.Product) ProductSummary {
	return ProductSummary{ID: p.ID, Name: p.Name, Description: p.Description, SKU: p.SKU}
}

func orderView(o domain.Order) OrderView {
	view := OrderView{
		CustomerID: o.CustomerID,
		ProductID:  o.ProductID,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
	}
	if o.UpdatedAt != nil {
		updated := *o.UpdatedAt
		view.UpdatedAt = &updated
	}
	return view
}

// relations разрешает связи по ключам в рамках одной транзакции
// и кэширует уже загруженных клиентов и товары.
type relations struct {
	tx        domain.Tx
	customers map[int64]CustomerSummary
	products  map[int64]ProductSummary
}

func newRelations(tx domain.Tx) *relations {
	return &relations{
		tx:        tx,
		customers: make(map[int64]CustomerSummary),
		products:  make(map[int64]ProductSummary),
	}
}

func (r *relations) customer(ctx context.Context, id int64) (CustomerSummary, error) {
	if c, ok := r.customers[id]; ok {
		return c, nil
	}
	c, err := r.tx.GetCustomer(ctx, id)
	if err != nil {
		return CustomerSummary{}, notFound(err, domain.EntityCustomer, id)
	}
	summary := customerSummary(c)
	r.customers[id] = summary
	return summary, nil
}

func (r *relations) product(ctx context.Context, id int64) (ProductSummary, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	p, err := r.tx.GetProduct(ctx, id)
	if err != nil {
		return ProductSummary{}, notFound(err, domain.EntityProduct, id)
	}
	summary := productSummary(p)
	r.products[id] = summary
	return summary, nil
}

// ordersWithProducts загружает заказы по фильтру и раскрывает их товары.
func (r *relations) ordersWithProducts(ctx context.Context, filter domain.OrderFilter) ([]OrderView, error) {
	orders, err := r.tx.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		view := orderView(o)
		product, err := r.product(ctx, o.ProductID)
		if err != nil {
			return nil, err
		}
		view.Product = &product
		views = append(views, view)
	}
	return views, nil
}

// ordersWithCustomers загружает заказы по фильтру и раскрывает их клиентов.
func (r *relations) ordersWithCustomers(ctx context.Context, filter domain.OrderFilter) ([]OrderView, error) {
	orders, err := r.tx.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		view := orderView(o)
		customer, err := r.customer(ctx, o.CustomerID)
		if err != nil {
			return nil, err
		}
		view.Customer = &customer
		views = append(views, view)
	}
	return views, nil
}

// order раскрывает обе стороны заказа.
func (r *relations) order(ctx context.Context, o domain.Order) (OrderView, error) {
	view := orderView(o)
	customer, err := r.customer(ctx, o.CustomerID)
	if err != nil {
		return OrderView{}, err
	}
	product, err := r.product(ctx, o.ProductID)
	if err != nil {
		return OrderView{}, err
	}
	view.Customer = &customer
	view.Product = &product
	return view, nil
}

func (r *relations) customerView(ctx context.Context, c domain.Customer) (CustomerView, error) {
	orders, err := r.ordersWithProducts(ctx, domain.OrderFilter{CustomerID: c.ID})
	if err != nil {
		return CustomerView{}, err
	}
	summary := customerSummary(c)
	r.customers[c.ID] = summary
	return CustomerView{CustomerSummary: summary, Orders: orders}, nil
}

func (r *relations) productView(ctx context.Context, p domain.Product) (ProductView, error) {
	orders, err := r.ordersWithCustomers(ctx, domain.OrderFilter{ProductID: p.ID})
	if err != nil {
		return ProductView{}, err
	}
	summary := productSummary(p)
	r.products[p.ID] = summary
	return ProductView{ProductSummary: summary, Orders: orders}, nil
}

// groupOrders раскладывает заказы по значению key; списки загружают заказы одним запросом.
func groupOrders(views []OrderView, key func(OrderView) int64) map[int64][]OrderView {
	grouped := make(map[int64][]OrderView)
	for _, v := range views {
		grouped[key(v)] = append(grouped[key(v)], v)
	}
	return grouped
}

func ordersOrEmpty(views []OrderView) []OrderView {
	if views == nil {
		return []OrderView{}
	}
	return views
}
