// Package repository - персистентность позиций и ордеров в PostgreSQL.
// База опциональна: без неё бот держит историю в памяти.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"fundingbot/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// SavePosition вставляет или обновляет позицию.
// Позиция переписывается целиком: id стабилен на всём жизненном цикле.
func (r *PositionRepository) SavePosition(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (id, symbol, spot_quantity, futures_quantity, spot_entry_price, futures_entry_price,
			funding_rate, state, close_reason, compensation, opened_at, scheduled_close_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			close_reason = EXCLUDED.close_reason,
			compensation = EXCLUDED.compensation,
			closed_at = EXCLUDED.closed_at`

	_, err := r.db.ExecContext(
		ctx,
		query,
		pos.ID,
		pos.Symbol,
		pos.SpotQuantity,
		pos.FuturesQuantity,
		pos.SpotEntryPrice,
		pos.FuturesEntryPrice,
		pos.FundingRate,
		pos.State,
		pos.CloseReason,
		pos.Compensation,
		pos.OpenedAt,
		pos.ScheduledCloseAt,
		pos.ClosedAt,
	)
	return err
}

// GetByID возвращает позицию по ID
func (r *PositionRepository) GetByID(ctx context.Context, id string) (*models.Position, error) {
	query := `
		SELECT id, symbol, spot_quantity, futures_quantity, spot_entry_price, futures_entry_price,
			funding_rate, state, close_reason, compensation, opened_at, scheduled_close_at, closed_at
		FROM positions
		WHERE id = $1`

	pos := &models.Position{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pos.ID,
		&pos.Symbol,
		&pos.SpotQuantity,
		&pos.FuturesQuantity,
		&pos.SpotEntryPrice,
		&pos.FuturesEntryPrice,
		&pos.FundingRate,
		&pos.State,
		&pos.CloseReason,
		&pos.Compensation,
		&pos.OpenedAt,
		&pos.ScheduledCloseAt,
		&pos.ClosedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return pos, nil
}

// ListLive возвращает позиции в нетерминальных состояниях.
// Используется при старте для обнаружения брошенных позиций.
func (r *PositionRepository) ListLive(ctx context.Context) ([]*models.Position, error) {
	query := `
		SELECT id, symbol, spot_quantity, futures_quantity, spot_entry_price, futures_entry_price,
			funding_rate, state, close_reason, compensation, opened_at, scheduled_close_at, closed_at
		FROM positions
		WHERE state NOT IN ($1, $2)
		ORDER BY opened_at`

	return r.queryPositions(ctx, query, models.PositionStateClosed, models.PositionStateFailed)
}

// ListRecent возвращает последние завершённые позиции
func (r *PositionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Position, error) {
	query := `
		SELECT id, symbol, spot_quantity, futures_quantity, spot_entry_price, futures_entry_price,
			funding_rate, state, close_reason, compensation, opened_at, scheduled_close_at, closed_at
		FROM positions
		WHERE state IN ($1, $2)
		ORDER BY opened_at DESC
		LIMIT $3`

	return r.queryPositions(ctx, query, models.PositionStateClosed, models.PositionStateFailed, limit)
}

func (r *PositionRepository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*models.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID,
			&pos.Symbol,
			&pos.SpotQuantity,
			&pos.FuturesQuantity,
			&pos.SpotEntryPrice,
			&pos.FuturesEntryPrice,
			&pos.FundingRate,
			&pos.State,
			&pos.CloseReason,
			&pos.Compensation,
			&pos.OpenedAt,
			&pos.ScheduledCloseAt,
			&pos.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}
