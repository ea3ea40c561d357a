package sales

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
	"github.com/vladislavdragonenkov/salesrepo/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesrepo/internal/validation"
)

// CustomerValidator проверяет запросы на создание и изменение клиента.
type CustomerValidator interface {
	CreateCustomer(req domain.CreateCustomerRequest) error
	UpdateCustomer(req domain.UpdateCustomerRequest) error
}

// CustomerService управляет клиентами.
type CustomerService struct {
	base
	validator CustomerValidator
}

// NewCustomerService создаёт сервис клиентов. nil validator заменяется правилами по умолчанию.
func NewCustomerService(deps Deps, validator CustomerValidator) *CustomerService {
	if validator == nil {
		validator = validation.New()
	}
	return &CustomerService{
		base:      newBase(domain.EntityCustomer, "customer-service", deps),
		validator: validator,
	}
}

// Create проверяет запрос и сохраняет нового клиента.
func (s *CustomerService) Create(ctx context.Context, req domain.CreateCustomerRequest) (CustomerView, error) {
	if err := s.validator.CreateCustomer(req); err != nil {
		return CustomerView{}, s.rejected("create", err)
	}

	var view CustomerView
	err := s.run(ctx, "create", func(ctx context.Context, tx domain.Tx) error {
		created, err := tx.InsertCustomer(ctx, domain.Customer{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Email:     req.Email,
		})
		if err != nil {
			return err
		}
		view, err = newRelations(tx).customerView(ctx, created)
		return err
	})
	if err != nil {
		return CustomerView{}, err
	}

	s.logger.WithField("customer_id", view.ID).Debug("customer created")
	s.publish(kafka.EventTypeCustomerCreated, entityKey(view.ID), view.CustomerSummary)
	return view, nil
}

// Get возвращает клиента с его заказами.
func (s *CustomerService) Get(ctx context.Context, id int64) (CustomerView, error) {
	var view CustomerView
	err := s.run(ctx, "get", func(ctx context.Context, tx domain.Tx) error {
		customer, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return notFound(err, domain.EntityCustomer, id)
		}
		view, err = newRelations(tx).customerView(ctx, customer)
		return err
	})
	if err != nil {
		return CustomerView{}, err
	}
	return view, nil
}

// List возвращает клиентов, у которых имя или фамилия содержит search (без учёта регистра),
// упорядоченных по имени и фамилии. Пустой search возвращает всех.
func (s *CustomerService) List(ctx context.Context, search string) ([]CustomerView, error) {
	var views []CustomerView
	err := s.run(ctx, "list", func(ctx context.Context, tx domain.Tx) error {
		customers, err := tx.ListCustomers(ctx, search)
		if err != nil {
			return err
		}

		views = make([]CustomerView, 0, len(customers))
		if len(customers) == 0 {
			return nil
		}

		// без поиска нужны заказы всех клиентов
		filter := domain.OrderFilter{}
		if search != "" {
			filter.CustomerIDs = make([]int64, 0, len(customers))
			for _, c := range customers {
				filter.CustomerIDs = append(filter.CustomerIDs, c.ID)
			}
		}
		orders, err := newRelations(tx).ordersWithProducts(ctx, filter)
		if err != nil {
			return err
		}
		byCustomer := groupOrders(orders, func(v OrderView) int64 { return v.CustomerID })

		for _, c := range customers {
			views = append(views, CustomerView{
				CustomerSummary: customerSummary(c),
				Orders:          ordersOrEmpty(byCustomer[c.ID]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Update заменяет изменяемые поля клиента.
func (s *CustomerService) Update(ctx context.Context, req domain.UpdateCustomerRequest) (CustomerView, error) {
	if err := s.validator.UpdateCustomer(req); err != nil {
		return CustomerView{}, s.rejected("update", err)
	}

	var view CustomerView
	err := s.run(ctx, "update", func(ctx context.Context, tx domain.Tx) error {
		customer, err := tx.GetCustomer(ctx, req.ID)
		if err != nil {
			return notFound(err, domain.EntityCustomer, req.ID)
		}

		customer.FirstName = req.FirstName
		customer.LastName = req.LastName
		customer.Phone = req.Phone
		customer.Email = req.Email
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return notFound(err, domain.EntityCustomer, req.ID)
		}

		reloaded, err := tx.GetCustomer(ctx, req.ID)
		if err != nil {
			return notFound(err, domain.EntityCustomer, req.ID)
		}
		view, err = newRelations(tx).customerView(ctx, reloaded)
		return err
	})
	if err != nil {
		return CustomerView{}, err
	}

	s.logger.WithField("customer_id", view.ID).Debug("customer updated")
	s.publish(kafka.EventTypeCustomerUpdated, entityKey(view.ID), view.CustomerSummary)
	return view, nil
}

// Delete удаляет клиента. Клиента с заказами удалить нельзя.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	err := s.run(ctx, "delete", func(ctx context.Context, tx domain.Tx) error {
		affected, err := tx.DeleteCustomer(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.NewNotFoundError(domain.EntityCustomer, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{"customer_id": id}).Debug("customer deleted")
	s.publish(kafka.EventTypeCustomerDeleted, entityKey(id), map[string]int64{"id": id})
	return nil
}

// ListOrders возвращает заказы клиента с раскрытыми товарами.
func (s *CustomerService) ListOrders(ctx context.Context, id int64) ([]OrderView, error) {
	var views []OrderView
	err := s.run(ctx, "list_orders", func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.GetCustomer(ctx, id); err != nil {
			return notFound(err, domain.EntityCustomer, id)
		}
		var err error
		views, err = newRelations(tx).ordersWithProducts(ctx, domain.OrderFilter{CustomerID: id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}
