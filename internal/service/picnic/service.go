// Package picnic handles picnic game registration and coordinator reporting.
package picnic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/internal/validation"
	"github.com/aimd54/congregation/pkg/logger"
)

// Registration failures.
var (
	ErrNoGames              = errors.New("no games selected")
	ErrInvalidGame          = errors.New("invalid game")
	ErrCapacityReached      = errors.New("picnic capacity reached")
	ErrInvalidSupport       = errors.New("invalid support amount")
	ErrRegistrationNotFound = errors.New("picnic registration not found")
	ErrGameNotFound         = errors.New("picnic game not found")
	ErrUserNotFound         = points.ErrUserNotFound
)

// Service handles picnic registrations and coordinator reports.
type Service struct {
	db       *repository.DB
	ledger   *points.Ledger
	capacity int
	games    []string
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a picnic service. ledger may be nil, in which case no
// points are awarded for registering.
func NewService(db *repository.DB, ledger *points.Ledger, cfg *config.PicnicConfig, log *logger.Logger) *Service {
	games := cfg.GameList()
	if games == nil {
		games = models.PicnicGames
	}

	return &Service{
		db:       db,
		ledger:   ledger,
		capacity: cfg.Capacity,
		games:    games,
		log:      log,
		now:      time.Now,
	}
}

// Games returns the canonical game order.
func (s *Service) Games() []string {
	return append([]string(nil), s.games...)
}

func (s *Service) year(year int) int {
	if year <= 0 {
		return s.now().Year()
	}
	return year
}

// normalizeGames trims, validates and de-duplicates games preserving order.
func (s *Service) normalizeGames(games []string) ([]string, error) {
	allowed := make(map[string]bool, len(s.games))
	for _, g := range s.games {
		allowed[g] = true
	}

	seen := make(map[string]bool, len(games))
	result := make([]string, 0, len(games))
	for _, g := range games {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if !allowed[g] {
			return nil, validation.New("games", ErrInvalidGame, "The selected game %q is invalid.", g)
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		result = append(result, g)
	}

	if len(result) == 0 {
		return nil, validation.New("games", ErrNoGames, "Please select at least one game.")
	}
	return result, nil
}

// Register creates or replaces the user's game selection for a year. The
// capacity limit applies to new registrations only, and an update keeps the
// original registration time. It reports whether a new registration was made.
func (s *Service) Register(ctx context.Context, userID uint, year int, games []string, supportAmount *float64) (*models.GameRegistration, bool, error) {
	year = s.year(year)

	selected, err := s.normalizeGames(games)
	if err != nil {
		return nil, false, err
	}
	if supportAmount != nil && *supportAmount < 0 {
		return nil, false, validation.New("support_amount", ErrInvalidSupport, "The support amount cannot be negative.")
	}

	registration, created, err := s.save(ctx, userID, year, selected, supportAmount)
	if repository.IsDuplicate(err) {
		// a concurrent first registration won the insert; ours becomes an update
		s.log.Debug().
			Uint("user_id", userID).
			Int("year", year).
			Msg("Registration created concurrently, retrying as update")
		registration, created, err = s.save(ctx, userID, year, selected, supportAmount)
		if repository.IsDuplicate(err) {
			err = fmt.Errorf("%w: %w", repository.ErrRetryable, err)
		}
	}
	if err != nil {
		return nil, false, repository.Classify(err)
	}

	kind := "update"
	if created {
		kind = "new"
		if s.ledger != nil {
			s.ledger.InvalidateLeaderboard(ctx)
		}
	}
	metrics.RecordPicnicRegistration(kind)

	s.log.Info().
		Uint("user_id", userID).
		Int("year", year).
		Strs("games", selected).
		Bool("created", created).
		Msg("Picnic registration saved")

	return registration, created, nil
}

func (s *Service) save(ctx context.Context, userID uint, year int, selected []string, supportAmount *float64) (*models.GameRegistration, bool, error) {
	var (
		registration *models.GameRegistration
		created      bool
		awarded      int
	)
	err := s.db.Transaction(ctx, func(tx *repository.DB) error {
		if _, err := repository.NewUserRepository(tx).GetByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
			}
			return err
		}

		repo := repository.NewPicnicRepository(tx)

		existing, err := repo.GetByUserAndYear(ctx, userID, year)
		switch {
		case err == nil:
			existing.Games = selected
			existing.SupportAmount = supportAmount
			registration = existing
			return repo.UpdateSelection(ctx, existing)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		count, err := repo.CountByYear(ctx, year)
		if err != nil {
			return err
		}
		if s.capacity > 0 && int(count) >= s.capacity {
			return validation.New("games", ErrCapacityReached,
				"Registration is closed. All %d slots for %d have been taken.", s.capacity, year)
		}

		registration = &models.GameRegistration{
			UserID:        userID,
			Year:          year,
			Games:         selected,
			SupportAmount: supportAmount,
			RegisteredAt:  s.now(),
		}
		if err := repo.Create(ctx, registration); err != nil {
			return err
		}
		created = true

		if s.ledger != nil {
			awarded, err = s.ledger.AwardTx(ctx, tx, userID, points.ActionEventsRegistered)
			return err
		}
		return nil
	})
	if err != nil {
		if awarded > 0 {
			s.ledger.ReleaseAward(ctx, userID, points.ActionEventsRegistered)
		}
		return nil, false, err
	}
	return registration, created, nil
}

// GetRegistration returns the user's registration for a year.
func (s *Service) GetRegistration(ctx context.Context, userID uint, year int) (*models.GameRegistration, error) {
	year = s.year(year)

	registration, err := repository.NewPicnicRepository(s.db).GetByUserAndYear(ctx, userID, year)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d in %d: %w", userID, year, ErrRegistrationNotFound)
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return registration, nil
}

// Withdraw deletes the user's registration for a year. Points awarded for
// registering are kept.
func (s *Service) Withdraw(ctx context.Context, userID uint, year int) error {
	year = s.year(year)

	deleted, err := repository.NewPicnicRepository(s.db).Delete(ctx, userID, year)
	if err != nil {
		return repository.Classify(err)
	}
	if !deleted {
		return fmt.Errorf("user %d in %d: %w", userID, year, ErrRegistrationNotFound)
	}

	s.log.Info().
		Uint("user_id", userID).
		Int("year", year).
		Msg("Picnic registration withdrawn")

	return nil
}

func yearLabel(year int) string {
	return strconv.Itoa(year)
}
