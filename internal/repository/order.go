package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/repository/postgres"
)

const pgErrUniqueViolationCode = "23505"

const (
	orderColumns = `id, user_id, user_name, package_name, weight, price, status, payment_status,
						machine_id, machine_name, customer_name, customer_phone, customer_email,
						customer_address, coffee_type, delivery_date, notes, created_at, updated_at`

	nextOrderSeqQuery = `SELECT nextval('order_id_seq')`

	insertOrderQuery = `
						INSERT INTO orders (id, user_id, user_name, package_name, weight, price, status, payment_status,
						                    customer_name, customer_phone, customer_email, customer_address,
						                    coffee_type, delivery_date, notes)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
						RETURNING ` + orderColumns

	selectOrderByIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE id = $1
`
	selectOrdersByUserIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	selectOrdersQuery = `
						SELECT ` + orderColumns + ` FROM orders
						ORDER BY created_at DESC
`
	selectOrdersForStatsQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE ($1::bigint IS NULL OR user_id = $1)
						  AND ($2::int = 0 OR EXTRACT(YEAR FROM created_at) = $2)
						  AND ($3::int = 0 OR EXTRACT(MONTH FROM created_at) = $3)
						ORDER BY created_at DESC
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, updated_at = now()
						WHERE id = $2
`
	updateOrderPaymentStatusQuery = `
						UPDATE orders
						SET payment_status = $1, updated_at = now()
						WHERE id = $2
`
	updateOrderMachineQuery = `
						UPDATE orders
						SET machine_id = $1, machine_name = $2, status = $3, updated_at = now()
						WHERE id = $4
`
	deleteOrderQuery = `DELETE FROM orders WHERE id = $1`
)

// OrderRepository implements OrderRepository interface
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	o := models.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.UserName, &o.PackageName, &o.Weight, &o.Price, &o.Status, &o.PaymentStatus,
		&o.MachineID, &o.MachineName, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Email,
		&o.Customer.Address, &o.Customer.CoffeeType, &o.Customer.DeliveryDate, &o.Customer.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder assigns sequential id and inserts order
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	var seq int64
	if err := or.db.QueryRow(ctx, nextOrderSeqQuery).Scan(&seq); err != nil {
		return nil, err
	}

	c := order.Customer
	created, err := scanOrder(or.db.QueryRow(ctx, insertOrderQuery,
		models.FormatOrderID(seq), order.UserID, order.UserName, order.PackageName, order.Weight, order.Price,
		order.Status, order.PaymentStatus, c.Name, c.Phone, c.Email, c.Address, c.CoffeeType, c.DeliveryDate, c.Notes))
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetOrderByID returns order by id
func (or *OrderRepository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetOrdersByUserID returns user orders, newest first
func (or *OrderRepository) GetOrdersByUserID(ctx context.Context, userID uint64) ([]models.Order, error) {
	return or.list(ctx, selectOrdersByUserIDQuery, userID)
}

// GetOrders returns all orders, newest first
func (or *OrderRepository) GetOrders(ctx context.Context) ([]models.Order, error) {
	return or.list(ctx, selectOrdersQuery)
}

// GetOrdersForStats returns orders matching filter, newest first
func (or *OrderRepository) GetOrdersForStats(ctx context.Context, f models.StatsFilter) ([]models.Order, error) {
	return or.list(ctx, selectOrdersForStatsQuery, f.UserID, f.Year, f.Month)
}

func (or *OrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateOrderStatus updates order status
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return or.exec(ctx, updateOrderStatusQuery, status, id)
}

// UpdatePaymentStatus updates order payment status
func (or *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	return or.exec(ctx, updateOrderPaymentStatusQuery, status, id)
}

// AssignMachine sets machine and status of order
func (or *OrderRepository) AssignMachine(ctx context.Context, id, machineID, machineName string, status models.OrderStatus) error {
	return or.exec(ctx, updateOrderMachineQuery, machineID, machineName, status, id)
}

// DeleteOrder deletes order, its batches, payments and sorting results
func (or *OrderRepository) DeleteOrder(ctx context.Context, id string) error {
	return or.exec(ctx, deleteOrderQuery, id)
}

func (or *OrderRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := or.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}
