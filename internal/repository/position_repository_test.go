package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fundingbot/internal/models"
)

// ============================================================
// PositionRepository Tests
// ============================================================

func positionColumns() []string {
	return []string{
		"id", "symbol", "spot_quantity", "futures_quantity", "spot_entry_price", "futures_entry_price",
		"funding_rate", "state", "close_reason", "compensation", "opened_at", "scheduled_close_at", "closed_at",
	}
}

func TestPositionRepositorySave(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		position    *models.Position
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "insert open position",
			position: &models.Position{
				ID:                "pos-1",
				Symbol:            "BTC/INR",
				SpotQuantity:      100,
				FuturesQuantity:   99.7,
				SpotEntryPrice:    100,
				FuturesEntryPrice: 100.3,
				FundingRate:       1.5,
				State:             models.PositionStateOpen,
				OpenedAt:          now,
				ScheduledCloseAt:  now.Add(8 * time.Hour),
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO positions`).
					WithArgs("pos-1", "BTC/INR", 100.0, 99.7, 100.0, 100.3, 1.5,
						models.PositionStateOpen, "", "", now, now.Add(8*time.Hour), (*time.Time)(nil)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "database error",
			position: &models.Position{
				ID:     "pos-2",
				Symbol: "BTC/INR",
				State:  models.PositionStateFailed,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO positions`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewPositionRepository(db)
			err = repo.SavePosition(context.Background(), tt.position)

			if (err != nil) != tt.expectError {
				t.Errorf("SavePosition() error = %v, expectError %v", err, tt.expectError)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPositionRepositoryGetByID(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs("pos-1").
		WillReturnRows(sqlmock.NewRows(positionColumns()).
			AddRow("pos-1", "BTC/INR", 100.0, 99.7, 100.0, 100.3, 1.5,
				models.PositionStateClosed, models.CloseReasonHoldingElapsed, "",
				now, now.Add(8*time.Hour), now.Add(8*time.Hour)))

	repo := NewPositionRepository(db)
	pos, err := repo.GetByID(context.Background(), "pos-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if pos.ID != "pos-1" || pos.Symbol != "BTC/INR" {
		t.Errorf("got %+v, want pos-1 BTC/INR", pos)
	}
	if pos.State != models.PositionStateClosed {
		t.Errorf("State = %s, want closed", pos.State)
	}
	if pos.ClosedAt == nil {
		t.Error("ClosedAt is nil")
	}
}

func TestPositionRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(positionColumns()))

	repo := NewPositionRepository(db)
	_, err = repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("GetByID() error = %v, want ErrPositionNotFound", err)
	}
}

func TestPositionRepositoryListLive(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs(models.PositionStateClosed, models.PositionStateFailed).
		WillReturnRows(sqlmock.NewRows(positionColumns()).
			AddRow("pos-1", "BTC/INR", 100.0, 99.7, 100.0, 100.3, 1.5,
				models.PositionStateMonitoring, "", "", now, now.Add(8*time.Hour), (*time.Time)(nil)).
			AddRow("pos-2", "ETH/INR", 50.0, 49.9, 200.0, 200.4, 0.8,
				models.PositionStateOpen, "", "", now, now.Add(8*time.Hour), (*time.Time)(nil)))

	repo := NewPositionRepository(db)
	positions, err := repo.ListLive(context.Background())
	if err != nil {
		t.Fatalf("ListLive() error = %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("ListLive() returned %d positions, want 2", len(positions))
	}
	if positions[0].ID != "pos-1" || positions[1].ID != "pos-2" {
		t.Errorf("unexpected order: %s, %s", positions[0].ID, positions[1].ID)
	}
}
