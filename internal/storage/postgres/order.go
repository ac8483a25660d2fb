package postgres

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/order-service/internal/domain/order"
)

const (
	orderColumns = `id, product_id, quantity, status, created_at`

	createOrderSQL = `INSERT INTO orders (product_id, quantity, status)
	VALUES ($1, $2, $3)
	RETURNING ` + orderColumns

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY id DESC`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// orderRow mirrors a row of the orders table. The product_id column is
// exposed as ProductID everywhere outside this package.
type orderRow struct {
	ID        int64     `db:"id"`
	ProductID string    `db:"product_id"`
	Quantity  int32     `db:"quantity"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r orderRow) toDomain() order.Order {
	return order.Order{
		ID:        r.ID,
		ProductID: r.ProductID,
		Quantity:  int(r.Quantity),
		Status:    order.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

// OrderRepository implements order.Repository backed by PostgreSQL. The
// identity column guarantees unique, increasing ids across concurrent
// inserts.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a PENDING order and returns the stored row. Any failure,
// including a quantity the quantity column cannot hold, is reported as
// *order.StoreError.
func (r *OrderRepository) Create(ctx context.Context, productID string, quantity int) (*order.Order, error) {
	if quantity < math.MinInt32 || quantity > math.MaxInt32 {
		return nil, &order.StoreError{Op: "create", Err: errors.Errorf("quantity %d out of range", quantity)}
	}

	rows, err := r.pool.Query(ctx, createOrderSQL, productID, int32(quantity), string(order.StatusPending))
	if err != nil {
		return nil, &order.StoreError{Op: "create", Err: err}
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return nil, &order.StoreError{Op: "create", Err: err}
	}

	o := row.toDomain()
	return &o, nil
}

// List returns all orders ordered by id descending.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, &order.StoreError{Op: "list", Err: err}
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return nil, &order.StoreError{Op: "list", Err: err}
	}

	orders := make([]order.Order, len(dbRows))
	for i, row := range dbRows {
		orders[i] = row.toDomain()
	}
	return orders, nil
}

// GetByID returns the order with the given id. It returns order.ErrNotFound
// when no such order exists.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, &order.StoreError{Op: "get", Err: err}
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, &order.StoreError{Op: "get", Err: err}
	}

	o := row.toDomain()
	return &o, nil
}
