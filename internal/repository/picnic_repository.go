package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/congregation/internal/models"
)

// PicnicRepository handles picnic game registrations.
type PicnicRepository struct {
	db *DB
}

// NewPicnicRepository creates a new picnic repository.
func NewPicnicRepository(db *DB) *PicnicRepository {
	return &PicnicRepository{db: db}
}

// GetByUserAndYear retrieves a user's registration for a year.
func (r *PicnicRepository) GetByUserAndYear(ctx context.Context, userID uint, year int) (*models.GameRegistration, error) {
	var registration models.GameRegistration
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		First(&registration).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get picnic registration for user %d in %d: %w", userID, year, err)
	}
	return &registration, nil
}

// Create inserts a new registration.
func (r *PicnicRepository) Create(ctx context.Context, registration *models.GameRegistration) error {
	if err := r.db.WithContext(ctx).Create(registration).Error; err != nil {
		return fmt.Errorf("failed to create picnic registration: %w", err)
	}
	return nil
}

// UpdateSelection changes the games and pledge of an existing registration.
// RegisteredAt is never touched.
func (r *PicnicRepository) UpdateSelection(ctx context.Context, registration *models.GameRegistration) error {
	err := r.db.WithContext(ctx).Model(registration).
		Select("games", "support_amount", "updated_at").
		Updates(registration).Error
	if err != nil {
		return fmt.Errorf("failed to update picnic registration %d: %w", registration.ID, err)
	}
	return nil
}

// Delete removes a user's registration for a year. It reports whether a row was removed.
func (r *PicnicRepository) Delete(ctx context.Context, userID uint, year int) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		Delete(&models.GameRegistration{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete picnic registration for user %d in %d: %w", userID, year, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByYear returns all registrations of a year in arrival order.
func (r *PicnicRepository) ListByYear(ctx context.Context, year int) ([]models.GameRegistration, error) {
	var registrations []models.GameRegistration
	err := r.db.WithContext(ctx).
		Where("year = ?", year).
		Order("registered_at ASC").
		Order("id ASC").
		Find(&registrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list picnic registrations for %d: %w", year, err)
	}
	return registrations, nil
}

// CountByYear counts registrations for a year.
func (r *PicnicRepository) CountByYear(ctx context.Context, year int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GameRegistration{}).
		Where("year = ?", year).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count picnic registrations for %d: %w", year, err)
	}
	return count, nil
}
