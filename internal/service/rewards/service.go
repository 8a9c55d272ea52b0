// Package rewards implements the reward catalog and point redemption.
package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/cache"
	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/internal/validation"
	"github.com/aimd54/congregation/pkg/logger"
)

// Redemption failures.
var (
	ErrItemNotFound       = errors.New("reward item not found")
	ErrItemUnavailable    = errors.New("reward item unavailable")
	ErrOutOfStock         = errors.New("reward item out of stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidItem        = errors.New("invalid reward item")
)

// Redemption outcomes reported to metrics.
const (
	outcomeSuccess      = "success"
	outcomeNotFound     = "not_found"
	outcomeUnavailable  = "unavailable"
	outcomeOutOfStock   = "out_of_stock"
	outcomeInsufficient = "insufficient_points"
	outcomeRetryable    = "retryable"
	outcomeError        = "error"
)

// Receipt describes a completed redemption.
type Receipt struct {
	Reference       string            `json:"reference"`
	Item            models.RewardItem `json:"item"`
	PointsSpent     int               `json:"points_spent"`
	RemainingPoints int               `json:"remaining_points"`
	RedeemedAt      time.Time         `json:"redeemed_at"`
	Message         string            `json:"message"`
}

// ItemInput holds the editable fields of a catalog item. Nil fields are
// left unchanged on update.
type ItemInput struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	PointsRequired *int    `json:"points_required"`
	Stock          *int    `json:"stock"`
	Unlimited      bool    `json:"unlimited"` // clears Stock
	IsActive       *bool   `json:"is_active"`
}

// Service handles the reward catalog and redemptions.
type Service struct {
	db          *repository.DB
	cache       cache.Cache
	lockTimeout time.Duration
	cacheTTL    time.Duration
	ledger      *points.Ledger
	log         *logger.Logger
}

// NewService creates a rewards service. cache and ledger may be nil.
func NewService(db *repository.DB, c cache.Cache, ledger *points.Ledger, cfg *config.RewardsConfig, log *logger.Logger) *Service {
	return &Service{
		db:          db,
		cache:       c,
		lockTimeout: cfg.LockTimeout,
		cacheTTL:    cfg.CatalogCacheTTL,
		ledger:      ledger,
		log:         log,
	}
}

// Redeem exchanges a user's points for one unit of an item. Every check and
// mutation happens in a single transaction holding row locks on the item
// and the user.
func (s *Service) Redeem(ctx context.Context, userID, itemID uint) (*Receipt, error) {
	start := time.Now()

	var receipt *Receipt
	err := s.db.Transaction(ctx, func(tx *repository.DB) error {
		var err error
		receipt, err = s.redeemTx(ctx, tx, userID, itemID)
		return err
	})
	metrics.ObserveRedemptionDuration(time.Since(start).Seconds())

	if err != nil {
		err = repository.Classify(err)
		metrics.RecordRedemption(redemptionOutcome(err))
		s.log.Warn().
			Err(err).
			Uint("user_id", userID).
			Uint("item_id", itemID).
			Msg("Redemption failed")
		return nil, err
	}

	metrics.RecordRedemption(outcomeSuccess)
	metrics.RecordPointsRedeemed(receipt.PointsSpent)
	s.invalidateItems(ctx)
	if s.ledger != nil {
		s.ledger.InvalidateLeaderboard(ctx)
	}

	s.log.Info().
		Uint("user_id", userID).
		Uint("item_id", itemID).
		Str("reference", receipt.Reference).
		Int("points_spent", receipt.PointsSpent).
		Int("remaining_points", receipt.RemainingPoints).
		Msg("Reward redeemed")

	return receipt, nil
}

func (s *Service) redeemTx(ctx context.Context, tx *repository.DB, userID, itemID uint) (*Receipt, error) {
	if err := tx.SetLockTimeout(s.lockTimeout); err != nil {
		return nil, err
	}

	rewardRepo := repository.NewRewardRepository(tx)
	userRepo := repository.NewUserRepository(tx)

	item, err := rewardRepo.GetItemForUpdate(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
	}
	if err != nil {
		return nil, err
	}

	user, err := userRepo.GetByIDForUpdate(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, points.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !item.IsActive {
		return nil, validation.New("item", ErrItemUnavailable, "%s is no longer available.", item.Title)
	}
	if !item.Unlimited() && *item.Stock < 1 {
		return nil, outOfStock(item)
	}
	if user.RewardPoints < item.PointsRequired {
		return nil, insufficientPoints(item.PointsRequired, user.RewardPoints)
	}

	deducted, err := userRepo.DeductPoints(ctx, userID, item.PointsRequired)
	if err != nil {
		return nil, err
	}
	if !deducted {
		return nil, insufficientPoints(item.PointsRequired, user.RewardPoints)
	}

	if !item.Unlimited() {
		decremented, err := rewardRepo.DecrementStock(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if !decremented {
			return nil, outOfStock(item)
		}
	}

	if err := rewardRepo.IncrementRedeemed(ctx, itemID); err != nil {
		return nil, err
	}

	balance, err := userRepo.GetPoints(ctx, userID)
	if err != nil {
		return nil, err
	}

	redemption := &models.Redemption{
		Reference:    uuid.NewString(),
		UserID:       userID,
		RewardItemID: itemID,
		PointsSpent:  item.PointsRequired,
		RedeemedAt:   time.Now(),
	}
	if err := rewardRepo.CreateRedemption(ctx, redemption); err != nil {
		return nil, err
	}

	entry := &models.PointTransaction{
		UserID:       userID,
		Action:       models.ActionRedeemed,
		Points:       -item.PointsRequired,
		BalanceAfter: balance,
	}
	if err := repository.NewLedgerRepository(tx).Append(ctx, entry); err != nil {
		return nil, err
	}

	updated, err := rewardRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		Reference:       redemption.Reference,
		Item:            *updated,
		PointsSpent:     redemption.PointsSpent,
		RemainingPoints: balance,
		RedeemedAt:      redemption.RedeemedAt,
		Message:         fmt.Sprintf("You have successfully redeemed %s.", item.Title),
	}, nil
}

func outOfStock(item *models.RewardItem) error {
	return validation.New("item", ErrOutOfStock, "%s is out of stock.", item.Title)
}

func insufficientPoints(required, available int) error {
	return validation.New("points", ErrInsufficientPoints,
		"Insufficient points. You need %d points but only have %d.", required, available)
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, points.ErrUserNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrItemUnavailable):
		return outcomeUnavailable
	case errors.Is(err, ErrOutOfStock):
		return outcomeOutOfStock
	case errors.Is(err, ErrInsufficientPoints):
		return outcomeInsufficient
	case errors.Is(err, repository.ErrRetryable):
		return outcomeRetryable
	default:
		return outcomeError
	}
}

// CreateItem adds an item to the catalog. Items are active unless
// IsActive is explicitly false.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (*models.RewardItem, error) {
	item := &models.RewardItem{IsActive: true}
	if input.Title == nil {
		return nil, validation.New("title", ErrInvalidItem, "The title field is required.")
	}
	if input.PointsRequired == nil {
		return nil, validation.New("points_required", ErrInvalidItem, "The points required field is required.")
	}
	if err := applyInput(item, input); err != nil {
		return nil, err
	}

	if err := repository.NewRewardRepository(s.db).CreateItem(ctx, item); err != nil {
		return nil, repository.Classify(err)
	}
	s.invalidateItems(ctx)

	s.log.Info().
		Uint("item_id", item.ID).
		Str("title", item.Title).
		Int("points_required", item.PointsRequired).
		Msg("Reward item created")

	return item, nil
}

// UpdateItem edits an item under the same row lock redemptions take, so a
// concurrent redemption is never overwritten. Past redemptions keep the
// points they spent.
func (s *Service) UpdateItem(ctx context.Context, id uint, input ItemInput) (*models.RewardItem, error) {
	var item *models.RewardItem
	err := s.db.Transaction(ctx, func(tx *repository.DB) error {
		if err := tx.SetLockTimeout(s.lockTimeout); err != nil {
			return err
		}

		repo := repository.NewRewardRepository(tx)
		var err error
		item, err = repo.GetItemForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("item %d: %w", id, ErrItemNotFound)
		}
		if err != nil {
			return err
		}

		if err := applyInput(item, input); err != nil {
			return err
		}
		return repo.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, repository.Classify(err)
	}
	s.invalidateItems(ctx)

	s.log.Info().
		Uint("item_id", item.ID).
		Str("title", item.Title).
		Int("points_required", item.PointsRequired).
		Msg("Reward item updated")

	return item, nil
}

func applyInput(item *models.RewardItem, input ItemInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return validation.New("title", ErrInvalidItem, "The title field is required.")
		}
		item.Title = title
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.PointsRequired != nil {
		if *input.PointsRequired < 1 {
			return validation.New("points_required", ErrInvalidItem, "The points required must be at least 1.")
		}
		item.PointsRequired = *input.PointsRequired
	}
	switch {
	case input.Unlimited:
		item.Stock = nil
	case input.Stock != nil:
		if *input.Stock < 0 {
			return validation.New("stock", ErrInvalidItem, "The stock cannot be negative.")
		}
		stock := *input.Stock
		item.Stock = &stock
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	return nil
}

// GetItem returns a catalog item.
func (s *Service) GetItem(ctx context.Context, id uint) (*models.RewardItem, error) {
	item, err := repository.NewRewardRepository(s.db).GetItem(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return item, nil
}

// ListItems returns the catalog, served from cache when possible.
func (s *Service) ListItems(ctx context.Context, activeOnly bool) ([]models.RewardItem, error) {
	key := cache.RewardItemsKey(activeOnly)

	if items, ok := s.cachedItems(ctx, key); ok {
		return items, nil
	}

	items, err := repository.NewRewardRepository(s.db).ListItems(ctx, activeOnly)
	if err != nil {
		return nil, repository.Classify(err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache reward items")
			}
		}
	}

	return items, nil
}

func (s *Service) cachedItems(ctx context.Context, key string) ([]models.RewardItem, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read reward items from cache")
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var items []models.RewardItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt reward items cache entry")
		return nil, false
	}
	return items, true
}

func (s *Service) invalidateItems(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cache.RewardItemsKeys()...); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate reward items cache")
	}
}

// UserRedemptions lists a user's redemptions, newest first.
func (s *Service) UserRedemptions(ctx context.Context, userID uint) ([]models.Redemption, error) {
	redemptions, err := repository.NewRewardRepository(s.db).ListRedemptionsByUser(ctx, userID)
	if err != nil {
		return nil, repository.Classify(err)
	}
	return redemptions, nil
}
