package points

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/cache"
	"github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/pkg/logger"
)

// ErrUserNotFound is returned when points are requested for an unknown user.
var ErrUserNotFound = errors.New("user not found")

// Skip reasons reported to metrics.
const (
	skipUnknownAction = "unknown_action"
	skipDuplicate     = "duplicate"
)

// Ledger awards points and keeps the append-only transaction log.
type Ledger struct {
	db      *repository.DB
	catalog *Catalog
	cache   cache.Cache
	log     *logger.Logger
}

// NewLedger creates a ledger. cache may be nil.
func NewLedger(db *repository.DB, catalog *Catalog, c cache.Cache, log *logger.Logger) *Ledger {
	return &Ledger{
		db:      db,
		catalog: catalog,
		cache:   c,
		log:     log,
	}
}

// Catalog returns the action catalog used by the ledger.
func (l *Ledger) Catalog() *Catalog {
	return l.catalog
}

// Award grants the catalog value of action to the user in its own
// transaction and returns the points granted. A failed commit gives the
// claim back to the unit of work so the award can be retried.
func (l *Ledger) Award(ctx context.Context, userID uint, action string) (int, error) {
	var granted int
	err := l.db.Transaction(ctx, func(tx *repository.DB) error {
		var err error
		granted, err = l.AwardTx(ctx, tx, userID, action)
		return err
	})
	if err != nil {
		if unit, ok := UnitFromContext(ctx); ok && granted > 0 {
			unit.release(userID, action)
		}
		return 0, repository.Classify(err)
	}

	if granted > 0 {
		l.invalidateLeaderboard(ctx)
	}
	return granted, nil
}

// AwardTx grants points inside the caller's transaction. The unit of work
// carried by ctx, if any, grants each (user, action) pair only once. The
// claim is kept when the caller's transaction later rolls back; callers
// that retry in the same unit must use ReleaseAward.
func (l *Ledger) AwardTx(ctx context.Context, tx *repository.DB, userID uint, action string) (int, error) {
	points := l.catalog.Points(action)
	if points <= 0 {
		metrics.RecordAwardSkipped(skipUnknownAction)
		l.log.Debug().
			Uint("user_id", userID).
			Str("action", action).
			Msg("Action carries no points, skipping award")
		return 0, nil
	}

	unit, hasUnit := UnitFromContext(ctx)
	if hasUnit && !unit.claim(userID, action) {
		metrics.RecordAwardSkipped(skipDuplicate)
		l.log.Debug().
			Uint("user_id", userID).
			Str("action", action).
			Msg("Action already awarded in this unit of work")
		return 0, nil
	}

	balance, err := l.apply(ctx, tx, userID, action, points)
	if err != nil {
		if hasUnit {
			unit.release(userID, action)
		}
		return 0, repository.Classify(err)
	}

	metrics.RecordPointsAwarded(action, points)
	l.log.Info().
		Uint("user_id", userID).
		Str("action", action).
		Int("points", points).
		Int("balance", balance).
		Msg("Points awarded")

	return points, nil
}

// ReleaseAward gives back a claim taken by AwardTx whose transaction did not
// commit.
func (l *Ledger) ReleaseAward(ctx context.Context, userID uint, action string) {
	if unit, ok := UnitFromContext(ctx); ok {
		unit.release(userID, action)
	}
}

func (l *Ledger) apply(ctx context.Context, tx *repository.DB, userID uint, action string, points int) (int, error) {
	users := repository.NewUserRepository(tx)

	rows, err := users.IncrementPoints(ctx, userID, points)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, fmt.Errorf("failed to award %s to user %d: %w", action, userID, ErrUserNotFound)
	}

	balance, err := users.GetPoints(ctx, userID)
	if err != nil {
		return 0, err
	}

	entry := &models.PointTransaction{
		UserID:       userID,
		Action:       action,
		Points:       points,
		BalanceAfter: balance,
	}
	if err := repository.NewLedgerRepository(tx).Append(ctx, entry); err != nil {
		return 0, err
	}

	return balance, nil
}

// Balance returns the current balance of a user.
func (l *Ledger) Balance(ctx context.Context, userID uint) (int, error) {
	balance, err := repository.NewUserRepository(l.db).GetPoints(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to get balance of user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return 0, repository.Classify(err)
	}
	return balance, nil
}

// History returns the most recent ledger entries of a user.
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]models.PointTransaction, error) {
	entries, err := repository.NewLedgerRepository(l.db).ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, repository.Classify(err)
	}
	return entries, nil
}

// InvalidateLeaderboard drops cached rankings after a balance change.
func (l *Ledger) InvalidateLeaderboard(ctx context.Context) {
	l.invalidateLeaderboard(ctx)
}

func (l *Ledger) invalidateLeaderboard(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, cache.LeaderboardKeys()...); err != nil {
		l.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}
