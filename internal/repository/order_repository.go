package repository

import (
	"context"
	"database/sql"
	"errors"

	"fundingbot/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// RecordOrder создает запись об ордере
func (r *OrderRepository) RecordOrder(ctx context.Context, order *models.OrderRecord) error {
	query := `
		INSERT INTO orders (position_id, market, side, purpose, quantity, price_avg, status, error_message, created_at, filled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRowContext(
		ctx,
		query,
		order.PositionID,
		order.Market,
		order.Side,
		order.Purpose,
		order.Quantity,
		order.PriceAvg,
		order.Status,
		order.ErrorMessage,
		order.CreatedAt,
		order.FilledAt,
	).Scan(&order.ID)

	return err
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.OrderRecord, error) {
	query := `
		SELECT id, position_id, market, side, purpose, quantity, price_avg, status, error_message, created_at, filled_at
		FROM orders
		WHERE id = $1`

	order := &models.OrderRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.PositionID,
		&order.Market,
		&order.Side,
		&order.Purpose,
		&order.Quantity,
		&order.PriceAvg,
		&order.Status,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.FilledAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetByPositionID возвращает все ордера позиции
func (r *OrderRepository) GetByPositionID(ctx context.Context, positionID string) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, position_id, market, side, purpose, quantity, price_avg, status, error_message, created_at, filled_at
		FROM orders
		WHERE position_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.OrderRecord
	for rows.Next() {
		order := &models.OrderRecord{}
		err := rows.Scan(
			&order.ID,
			&order.PositionID,
			&order.Market,
			&order.Side,
			&order.Purpose,
			&order.Quantity,
			&order.PriceAvg,
			&order.Status,
			&order.ErrorMessage,
			&order.CreatedAt,
			&order.FilledAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// CountByStatus возвращает количество ордеров в каждом статусе
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM orders
		GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
