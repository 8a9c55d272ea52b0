package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/congregation/internal/models"
)

// RewardRepository handles reward catalog and redemption operations.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// CreateItem creates a new catalog item.
func (r *RewardRepository) CreateItem(ctx context.Context, item *models.RewardItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create reward item: %w", err)
	}
	return nil
}

// GetItem retrieves a catalog item by ID.
func (r *RewardRepository) GetItem(ctx context.Context, id uint) (*models.RewardItem, error) {
	var item models.RewardItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get reward item %d: %w", id, err)
	}
	return &item, nil
}

// GetItemForUpdate retrieves a catalog item under an exclusive row lock.
func (r *RewardRepository) GetItemForUpdate(ctx context.Context, id uint) (*models.RewardItem, error) {
	var item models.RewardItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock reward item %d: %w", id, err)
	}
	return &item, nil
}

// UpdateItem writes the editable fields of a catalog item. TotalRedeemed is
// owned by redemptions and never written here.
func (r *RewardRepository) UpdateItem(ctx context.Context, item *models.RewardItem) error {
	err := r.db.WithContext(ctx).Model(item).
		Select("title", "description", "points_required", "stock", "is_active", "updated_at").
		Updates(item).Error
	if err != nil {
		return fmt.Errorf("failed to update reward item %d: %w", item.ID, err)
	}
	return nil
}

// ListItems lists catalog items, optionally only active ones.
func (r *RewardRepository) ListItems(ctx context.Context, activeOnly bool) ([]models.RewardItem, error) {
	query := r.db.WithContext(ctx).Model(&models.RewardItem{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var items []models.RewardItem
	if err := query.Order("points_required ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list reward items: %w", err)
	}
	return items, nil
}

// DecrementStock removes one unit from a finite-stock item. It reports false
// when no unit was left.
func (r *RewardRepository) DecrementStock(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.RewardItem{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= 1", id).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement stock for item %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// IncrementRedeemed bumps the total_redeemed counter.
func (r *RewardRepository) IncrementRedeemed(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.RewardItem{}).
		Where("id = ?", id).
		UpdateColumn("total_redeemed", gorm.Expr("total_redeemed + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment redemptions for item %d: %w", id, err)
	}
	return nil
}

// CreateRedemption records a redemption.
func (r *RewardRepository) CreateRedemption(ctx context.Context, redemption *models.Redemption) error {
	if err := r.db.WithContext(ctx).Create(redemption).Error; err != nil {
		return fmt.Errorf("failed to create redemption: %w", err)
	}
	return nil
}

// ListRedemptionsByUser returns a user's redemptions with item details, newest first.
func (r *RewardRepository) ListRedemptionsByUser(ctx context.Context, userID uint) ([]models.Redemption, error) {
	var redemptions []models.Redemption
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("RewardItem").
		Order("redeemed_at DESC").
		Order("id DESC").
		Find(&redemptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions for user %d: %w", userID, err)
	}
	return redemptions, nil
}

// CountRedemptionsByUsers returns redemption counts keyed by user ID.
func (r *RewardRepository) CountRedemptionsByUsers(ctx context.Context, userIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		UserID uint
		Count  int
	}
	err := r.db.WithContext(ctx).Model(&models.Redemption{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count redemptions: %w", err)
	}

	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}
