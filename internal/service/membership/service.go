// Package membership records service attendance and promotes first-timers.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/pkg/logger"
)

// ErrUserNotFound is returned for unknown users.
var ErrUserNotFound = points.ErrUserNotFound

// AttendanceResult describes the outcome of marking attendance.
type AttendanceResult struct {
	Attendance    models.Attendance `json:"attendance"`
	Created       bool              `json:"created"`
	PointsAwarded int               `json:"points_awarded"`
	Promoted      bool              `json:"promoted"`
	Role          string            `json:"role"`
}

// Service handles attendance and role promotion.
type Service struct {
	db        *repository.DB
	ledger    *points.Ledger
	threshold int
	log       *logger.Logger
}

// NewService creates a membership service.
func NewService(db *repository.DB, ledger *points.Ledger, cfg *config.MembershipConfig, log *logger.Logger) *Service {
	return &Service{
		db:        db,
		ledger:    ledger,
		threshold: cfg.PromotionThreshold,
		log:       log,
	}
}

// serviceDay truncates t to its calendar date in UTC.
func serviceDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarkAttendance records that a user attended the service on serviceDate.
// Marking the same date twice returns the existing record and awards nothing.
func (s *Service) MarkAttendance(ctx context.Context, userID uint, serviceDate time.Time, usher bool) (*AttendanceResult, error) {
	day := serviceDay(serviceDate)
	action := points.ActionAttendanceMarked
	if usher {
		action = points.ActionUsherAttendanceMarked
	}

	result := &AttendanceResult{}
	err := s.db.Transaction(ctx, func(tx *repository.DB) error {
		user, err := repository.NewUserRepository(tx).GetByID(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
		}
		if err != nil {
			return err
		}
		result.Role = user.Role

		attendances := repository.NewAttendanceRepository(tx)
		attendance := &models.Attendance{UserID: userID, ServiceDate: day, Usher: usher}

		inserted, err := attendances.CreateIfAbsent(ctx, attendance)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := attendances.GetByUserAndDate(ctx, userID, day)
			if err != nil {
				return err
			}
			result.Attendance = *existing
			return nil
		}

		result.Attendance = *attendance
		result.Created = true

		result.PointsAwarded, err = s.ledger.AwardTx(ctx, tx, userID, action)
		return err
	})
	if err != nil {
		if result.PointsAwarded > 0 {
			s.ledger.ReleaseAward(ctx, userID, action)
		}
		return nil, repository.Classify(err)
	}

	if !result.Created {
		return result, nil
	}

	kind := "member"
	if usher {
		kind = "usher"
	}
	metrics.RecordAttendanceMarked(kind)
	if result.PointsAwarded > 0 {
		s.ledger.InvalidateLeaderboard(ctx)
	}

	promoted, err := s.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if promoted {
		result.Promoted = true
		result.Role = models.RoleMember
	}

	s.log.Info().
		Uint("user_id", userID).
		Time("service_date", day).
		Bool("usher", usher).
		Int("points", result.PointsAwarded).
		Bool("promoted", promoted).
		Msg("Attendance marked")

	return result, nil
}

// Evaluate promotes a first-timer to member once their attendance count
// reaches the threshold. Users at or above member are never changed.
func (s *Service) Evaluate(ctx context.Context, userID uint) (bool, error) {
	user, err := repository.NewUserRepository(s.db).GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return false, repository.Classify(err)
	}

	return s.evaluate(ctx, user)
}

func (s *Service) evaluate(ctx context.Context, user *models.User) (bool, error) {
	if user.Role != models.RoleFirstTimer {
		return false, nil
	}

	count, err := repository.NewAttendanceRepository(s.db).CountByUser(ctx, user.ID)
	if err != nil {
		return false, repository.Classify(err)
	}
	if int(count) < s.threshold {
		return false, nil
	}

	changed, err := repository.NewUserRepository(s.db).ChangeRole(ctx, user.ID, models.RoleFirstTimer, models.RoleMember)
	if err != nil {
		return false, repository.Classify(err)
	}
	if !changed {
		return false, nil
	}

	metrics.RecordMemberPromoted(models.RoleMember)
	s.log.Info().
		Uint("user_id", user.ID).
		Int64("attendances", count).
		Msg("First-timer promoted to member")

	return true, nil
}

// EvaluateAll runs the promotion rule for every first-timer and returns the
// users that were promoted.
func (s *Service) EvaluateAll(ctx context.Context) ([]models.User, error) {
	firstTimers, err := repository.NewUserRepository(s.db).List(ctx, models.RoleFirstTimer)
	if err != nil {
		return nil, repository.Classify(err)
	}

	promoted := make([]models.User, 0)
	for i := range firstTimers {
		user := &firstTimers[i]

		ok, err := s.evaluate(ctx, user)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to evaluate first-timer")
			continue
		}
		if ok {
			user.Role = models.RoleMember
			promoted = append(promoted, *user)
		}
	}

	s.log.Info().
		Int("evaluated", len(firstTimers)).
		Int("promoted", len(promoted)).
		Msg("Membership evaluation completed")

	return promoted, nil
}

// History returns a user's most recent attendances.
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]models.Attendance, error) {
	attendances, err := repository.NewAttendanceRepository(s.db).ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, repository.Classify(err)
	}
	return attendances, nil
}
