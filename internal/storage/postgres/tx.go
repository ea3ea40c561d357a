package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type pgTx struct {
	tx *sqlx.Tx
}

type customerRow struct {
	ID        int64  `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Phone     string `db:"phone"`
	Email     string `db:"email"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone, Email: r.Email}
}

type productRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	SKU         string `db:"sku"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{ID: r.ID, Name: r.Name, Description: r.Description, SKU: r.SKU}
}

type orderRow struct {
	CustomerID int64        `db:"customer_id"`
	ProductID  int64        `db:"product_id"`
	Status     string       `db:"status"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  sql.NullTime `db:"updated_at"`
}

func (r orderRow) toDomain() domain.Order {
	order := domain.Order{
		CustomerID: r.CustomerID,
		ProductID:  r.ProductID,
		Status:     domain.OrderStatus(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.UpdatedAt.Valid {
		updated := r.UpdatedAt.Time.UTC()
		order.UpdatedAt = &updated
	}
	return order
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback после Commit ничего не делает.
func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func (t *pgTx) InsertCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO customers (first_name, last_name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, customer.FirstName, customer.LastName, customer.Phone, customer.Email).Scan(&customer.ID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("insert customer: %w", mapWriteError(err, writeInsert))
	}
	return customer, nil
}

func (t *pgTx) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row customerRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT id, first_name, last_name, phone, email
		FROM customers
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows []customerRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT id, first_name, last_name, phone, email
		FROM customers
		WHERE $1::TEXT = '' OR first_name ILIKE $2 ESCAPE '\' OR last_name ILIKE $2 ESCAPE '\'
		ORDER BY first_name COLLATE "C", last_name COLLATE "C", id
	`, search, likePattern(search))
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}

	result := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (t *pgTx) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := t.tx.ExecContext(ctx, `
		UPDATE customers
		SET first_name = $2, last_name = $3, phone = $4, email = $5
		WHERE id = $1
	`, customer.ID, customer.FirstName, customer.LastName, customer.Phone, customer.Email)
	if err != nil {
		return fmt.Errorf("update customer: %w", mapWriteError(err, writeInsert))
	}
	return requireAffected(res)
}

func (t *pgTx) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	return t.delete(ctx, "customer", `DELETE FROM customers WHERE id = $1`, id)
}

func (t *pgTx) InsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO products (name, description, sku)
		VALUES ($1, $2, $3)
		RETURNING id
	`, product.Name, product.Description, product.SKU).Scan(&product.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", mapWriteError(err, writeInsert))
	}
	return product, nil
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row productRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT id, name, description, sku
		FROM products
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows []productRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT id, name, description, sku
		FROM products
		WHERE $1::TEXT = '' OR name ILIKE $2 ESCAPE '\' OR sku ILIKE $2 ESCAPE '\'
		ORDER BY name COLLATE "C", sku COLLATE "C", id
	`, search, likePattern(search))
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	result := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, sku = $4
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.SKU)
	if err != nil {
		return fmt.Errorf("update product: %w", mapWriteError(err, writeInsert))
	}
	return requireAffected(res)
}

func (t *pgTx) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	return t.delete(ctx, "product", `DELETE FROM products WHERE id = $1`, id)
}

func (t *pgTx) InsertOrder(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (customer_id, product_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.CustomerID, order.ProductID, string(order.Status), order.CreatedAt, nullTime(order.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert order: %w", mapWriteError(err, writeInsert))
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, key domain.OrderKey) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row orderRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT customer_id, product_id, status, created_at, updated_at
		FROM orders
		WHERE customer_id = $1 AND product_id = $2
	`, key.CustomerID, key.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows []orderRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT customer_id, product_id, status, created_at, updated_at
		FROM orders
		WHERE ($1::BIGINT = 0 OR customer_id = $1) AND ($2::BIGINT = 0 OR product_id = $2)
		  AND (cardinality($3::BIGINT[]) = 0 OR customer_id = ANY($3::BIGINT[]))
		  AND (cardinality($4::BIGINT[]) = 0 OR product_id = ANY($4::BIGINT[]))
		ORDER BY customer_id, product_id
	`, filter.CustomerID, filter.ProductID, idsParam(filter.CustomerIDs), idsParam(filter.ProductIDs))
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	result := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// UpdateOrder меняет только статус и время изменения; дата создания неизменна.
// Строка обновляется только при статусе from; транзакция, ждавшая блокировку строки,
// перепроверяет условие по зафиксированной версии и получает ErrOrderStatusChanged.
func (t *pgTx) UpdateOrder(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE customer_id = $1 AND product_id = $2 AND status = $5
	`, order.CustomerID, order.ProductID, string(order.Status), nullTime(order.UpdatedAt), string(from))
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = t.tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND product_id = $2)
	`, order.CustomerID, order.ProductID)
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrOrderStatusChanged
}

func (t *pgTx) DeleteOrder(ctx context.Context, key domain.OrderKey) (int64, error) {
	return t.delete(ctx, "order", `DELETE FROM orders WHERE customer_id = $1 AND product_id = $2`, key.CustomerID, key.ProductID)
}

func (t *pgTx) delete(ctx context.Context, entity, query string, args ...interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", entity, mapWriteError(err, writeDelete))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s rows affected: %w", entity, err)
	}
	return affected, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// idsParam передаёт пустой массив вместо NULL.
func idsParam(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern строит шаблон ILIKE для поиска подстроки; спецсимволы экранируются.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

var _ domain.Tx = (*pgTx)(nil)
