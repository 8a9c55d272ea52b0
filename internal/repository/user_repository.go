package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/congregation/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleFirstTimer
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByIDForUpdate retrieves a user and locks the row until the surrounding
// transaction ends.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return &user, nil
}

// GetByIDs retrieves users keyed by ID.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// List retrieves all users with an optional role filter.
func (r *UserRepository) List(ctx context.Context, role string) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// IncrementPoints atomically adds points to a user's balance and returns the
// number of rows affected (0 when the user does not exist).
func (r *UserRepository) IncrementPoints(ctx context.Context, id uint, points int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("reward_points", gorm.Expr("reward_points + ?", points))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment points for user %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

// DeductPoints atomically subtracts points only if the balance covers them.
// It reports false when the balance was insufficient.
func (r *UserRepository) DeductPoints(ctx context.Context, id uint, points int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reward_points >= ?", id, points).
		UpdateColumn("reward_points", gorm.Expr("reward_points - ?", points))
	if result.Error != nil {
		return false, fmt.Errorf("failed to deduct points for user %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetPoints returns the current balance of a user.
func (r *UserRepository) GetPoints(ctx context.Context, id uint) (int, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "reward_points").First(&user, id).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get points for user %d: %w", id, err)
	}
	return user.RewardPoints, nil
}

// ChangeRole moves a user from one role to another. It reports false when
// the user no longer holds the expected role.
func (r *UserRepository) ChangeRole(ctx context.Context, id uint, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", id, from).
		Update("role", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to change role for user %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListByPoints returns users ordered by balance (highest first, then by ID).
func (r *UserRepository) ListByPoints(ctx context.Context, role string, limit int) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var users []models.User
	if err := query.Order("reward_points DESC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by points: %w", err)
	}
	return users, nil
}

// CountAhead counts users ranked above the given user in the points ordering.
func (r *UserRepository) CountAhead(ctx context.Context, user *models.User) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("reward_points > ? OR (reward_points = ? AND id < ?)", user.RewardPoints, user.RewardPoints, user.ID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to rank user %d: %w", user.ID, err)
	}
	return count, nil
}
