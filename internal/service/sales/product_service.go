package sales

import (
	"context"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	"github.com/vladislavdragonenkov/salesrepo/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesrepo/internal/validation"
)

// ProductValidator проверяет запросы на создание и изменение товара.
type ProductValidator interface {
	CreateProduct(req domain.CreateProductRequest) error
	UpdateProduct(req domain.UpdateProductRequest) error
}

// ProductService управляет товарами.
type ProductService struct {
	base
	validator ProductValidator
}

// NewProductService создаёт сервис товаров. nil validator заменяется правилами по умолчанию.
func NewProductService(deps Deps, validator ProductValidator) *ProductService {
	if validator == nil {
		validator = validation.New()
	}
	return &ProductService{
		base:      newBase(domain.EntityProduct, "product-service", deps),
		validator: validator,
	}
}

// Create проверяет запрос и сохраняет новый товар.
func (s *ProductService) Create(ctx context.Context, req domain.CreateProductRequest) (ProductView, error) {
	if err := s.validator.CreateProduct(req); err != nil {
		return ProductView{}, s.rejected("create", err)
	}

	var view ProductView
	err := s.run(ctx, "create", func(ctx context.Context, tx domain.Tx) error {
		created, err := tx.InsertProduct(ctx, domain.Product{
			Name:        req.Name,
			Description: req.Description,
			SKU:         req.SKU,
		})
		if err != nil {
			return err
		}
		view, err = newRelations(tx).productView(ctx, created)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}

	s.logger.WithField("product_id", view.ID).Debug("product created")
	s.publish(kafka.EventTypeProductCreated, entityKey(view.ID), view.ProductSummary)
	return view, nil
}

// Get возвращает товар с его заказами.
func (s *ProductService) Get(ctx context.Context, id int64) (ProductView, error) {
	var view ProductView
	err := s.run(ctx, "get", func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.GetProduct(ctx, id)
		if err != nil {
			return notFound(err, domain.EntityProduct, id)
		}
		view, err = newRelations(tx).productView(ctx, product)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}
	return view, nil
}

// List возвращает товары, у которых название или SKU содержит search (без учёта регистра),
// упорядоченные по названию и SKU.
func (s *ProductService) List(ctx context.Context, search string) ([]ProductView, error) {
	var views []ProductView
	err := s.run(ctx, "list", func(ctx context.Context, tx domain.Tx) error {
		products, err := tx.ListProducts(ctx, search)
		if err != nil {
			return err
		}

		views = make([]ProductView, 0, len(products))
		if len(products) == 0 {
			return nil
		}

		filter := domain.OrderFilter{}
		if search != "" {
			filter.ProductIDs = make([]int64, 0, len(products))
			for _, p := range products {
				filter.ProductIDs = append(filter.ProductIDs, p.ID)
			}
		}
		orders, err := newRelations(tx).ordersWithCustomers(ctx, filter)
		if err != nil {
			return err
		}
		byProduct := groupOrders(orders, func(v OrderView) int64 { return v.ProductID })

		for _, p := range products {
			views = append(views, ProductView{
				ProductSummary: productSummary(p),
				Orders:         ordersOrEmpty(byProduct[p.ID]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Update заменяет изменяемые поля товара.
func (s *ProductService) Update(ctx context.Context, req domain.UpdateProductRequest) (ProductView, error) {
	if err := s.validator.UpdateProduct(req); err != nil {
		return ProductView{}, s.rejected("update", err)
	}

	var view ProductView
	err := s.run(ctx, "update", func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.GetProduct(ctx, req.ID)
		if err != nil {
			return notFound(err, domain.EntityProduct, req.ID)
		}

		product.Name = req.Name
		product.Description = req.Description
		product.SKU = req.SKU
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return notFound(err, domain.EntityProduct, req.ID)
		}

		reloaded, err := tx.GetProduct(ctx, req.ID)
		if err != nil {
			return notFound(err, domain.EntityProduct, req.ID)
		}
		view, err = newRelations(tx).productView(ctx, reloaded)
		return err
	})
	if err != nil {
		return ProductView{}, err
	}

	s.logger.WithField("product_id", view.ID).Debug("product updated")
	s.publish(kafka.EventTypeProductUpdated, entityKey(view.ID), view.ProductSummary)
	return view, nil
}

// Delete удаляет товар. Товар, на который ссылаются заказы, удалить нельзя.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	err := s.run(ctx, "delete", func(ctx context.Context, tx domain.Tx) error {
		affected, err := tx.DeleteProduct(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.NewNotFoundError(domain.EntityProduct, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Debug("product deleted")
	s.publish(kafka.EventTypeProductDeleted, entityKey(id), map[string]int64{"id": id})
	return nil
}

// ListOrders возвращает заказы товара с раскрытыми клиентами.
func (s *ProductService) ListOrders(ctx context.Context, id int64) ([]OrderView, error) {
	var views []OrderView
	err := s.run(ctx, "list_orders", func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return notFound(err, domain.EntityProduct, id)
		}
		var err error
		views, err = newRelations(tx).ordersWithCustomers(ctx, domain.OrderFilter{ProductID: id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}
