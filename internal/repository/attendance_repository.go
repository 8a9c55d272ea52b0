package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/congregation/internal/models"
)

// AttendanceRepository handles service attendance records.
type AttendanceRepository struct {
	db *DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateIfAbsent inserts an attendance row unless one already exists for the
// same user and date. It reports whether a row was inserted.
func (r *AttendanceRepository) CreateIfAbsent(ctx context.Context, attendance *models.Attendance) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(attendance)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record attendance for user %d: %w", attendance.UserID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetByUserAndDate retrieves the attendance row for a user on a date.
func (r *AttendanceRepository) GetByUserAndDate(ctx context.Context, userID uint, date time.Time) (*models.Attendance, error) {
	var attendance models.Attendance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND service_date = ?", userID, date).
		First(&attendance).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance for user %d: %w", userID, err)
	}
	return &attendance, nil
}

// CountByUser counts attendances for a user.
func (r *AttendanceRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance for user %d: %w", userID, err)
	}
	return count, nil
}

// ListByUser returns a user's attendance history, newest first.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Attendance, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("service_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attendances []models.Attendance
	if err := query.Find(&attendances).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance for user %d: %w", userID, err)
	}
	return attendances, nil
}
