// Package leaderboard provides points leaderboard and ranking services.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/cache"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/pkg/logger"
)

// ErrUserNotFound is returned when a standing is requested for an unknown user.
var ErrUserNotFound = points.ErrUserNotFound

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListByPoints(ctx context.Context, role string, limit int) ([]models.User, error)
	CountAhead(ctx context.Context, user *models.User) (int64, error)
}

// RewardRepository interface for redemption counts.
type RewardRepository interface {
	CountRedemptionsByUsers(ctx context.Context, userIDs []uint) (map[uint]int, error)
}

// LedgerRepository interface for lifetime totals.
type LedgerRepository interface {
	Totals(ctx context.Context, userID uint) (earned, spent int, err error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Points      int    `json:"points"`
	Redemptions int    `json:"redemptions"`
	Rank        int    `json:"rank"`
}

// Standing summarizes a user's position and lifetime points.
type Standing struct {
	UserID         uint   `json:"user_id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Balance        int    `json:"balance"`
	LifetimeEarned int    `json:"lifetime_earned"`
	LifetimeSpent  int    `json:"lifetime_spent"`
	Rank           int    `json:"rank"`
}

// Service handles leaderboard generation and user standings.
type Service struct {
	userRepo   UserRepository
	rewardRepo RewardRepository
	ledgerRepo LedgerRepository
	cache      cache.Cache
	ttl        time.Duration
	log        *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(db *repository.DB, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		userRepo:   repository.NewUserRepository(db),
		rewardRepo: repository.NewRewardRepository(db),
		ledgerRepo: repository.NewLedgerRepository(db),
		cache:      c,
		ttl:        ttl,
		log:        log,
	}
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	userRepo UserRepository,
	rewardRepo RewardRepository,
	ledgerRepo LedgerRepository,
	c cache.Cache,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:   userRepo,
		rewardRepo: rewardRepo,
		ledgerRepo: ledgerRepo,
		cache:      c,
		ttl:        ttl,
		log:        log,
	}
}

// GetLeaderboard ranks users by points, highest first, ties broken by ID.
// An empty role ranks everyone; limit <= 0 returns every entry.
func (s *Service) GetLeaderboard(ctx context.Context, role string, limit int) ([]Entry, error) {
	if role != "" && !models.IsValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	entries, ok := s.cached(ctx, role)
	if !ok {
		var err error
		entries, err = s.build(ctx, role)
		if err != nil {
			return nil, err
		}
		s.store(ctx, role, entries)
	}

	// Apply limit
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (s *Service) build(ctx context.Context, role string) ([]Entry, error) {
	users, err := s.userRepo.ListByPoints(ctx, role, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	counts, err := s.rewardRepo.CountRedemptionsByUsers(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get redemption counts")
		counts = map[uint]int{}
	}

	entries := make([]Entry, 0, len(users))
	for i, u := range users {
		entries = append(entries, Entry{
			UserID:      u.ID,
			Name:        u.FullName(),
			Role:        u.Role,
			Points:      u.RewardPoints,
			Redemptions: counts[u.ID],
			Rank:        i + 1,
		})
	}

	return entries, nil
}

func (s *Service) cached(ctx context.Context, role string) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}

	key := cache.LeaderboardKey(role)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read leaderboard from cache")
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *Service) store(ctx context.Context, role string, entries []Entry) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.LeaderboardKey(role), data, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache leaderboard")
	}
}

// GetUserStanding returns a user's balance, lifetime totals and global rank.
func (s *Service) GetUserStanding(ctx context.Context, userID uint) (*Standing, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user == nil) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	earned, spent, err := s.ledgerRepo.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger totals: %w", err)
	}

	ahead, err := s.userRepo.CountAhead(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank: %w", err)
	}

	return &Standing{
		UserID:         user.ID,
		Name:           user.FullName(),
		Role:           user.Role,
		Balance:        user.RewardPoints,
		LifetimeEarned: earned,
		LifetimeSpent:  spent,
		Rank:           int(ahead) + 1,
	}, nil
}
