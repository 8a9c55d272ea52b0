package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/congregation/internal/models"
)

// LedgerRepository handles the append-only point transaction ledger.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append records a balance change.
func (r *LedgerRepository) Append(ctx context.Context, entry *models.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry for user %d: %w", entry.UserID, err)
	}
	return nil
}

// ListByUser returns the most recent ledger entries for a user.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.PointTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.PointTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for user %d: %w", userID, err)
	}
	return entries, nil
}

// Totals returns lifetime points earned and spent by a user.
func (r *LedgerRepository) Totals(ctx context.Context, userID uint) (earned, spent int, err error) {
	var res struct {
		Earned int
		Spent  int
	}
	err = r.db.WithContext(ctx).Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0) AS earned, "+
			"COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0) AS spent").
		Where("user_id = ?", userID).
		Scan(&res).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total ledger for user %d: %w", userID, err)
	}
	return res.Earned, res.Spent, nil
}
