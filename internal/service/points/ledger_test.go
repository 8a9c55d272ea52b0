package points

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/congregation/internal/cache"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/pkg/logger"
	"github.com/aimd54/congregation/test/mocks"
	"github.com/aimd54/congregation/test/testdb"
)

func setupLedger(t *testing.T) (*Ledger, *repository.DB, *mocks.MockCache) {
	t.Helper()

	db := testdb.New(t)
	c := mocks.NewMockCache()
	return NewLedger(db, DefaultCatalog(), c, logger.Nop()), db, c
}

func createUser(t *testing.T, db *repository.DB, points int) *models.User {
	t.Helper()

	user := &models.User{FirstName: "Grace", Role: models.RoleFirstTimer, RewardPoints: points}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestLedger_AwardKnownAction(t *testing.T) {
	ledger, db, _ := setupLedger(t)
	ctx := context.Background()
	user := createUser(t, db, 0)

	granted, err := ledger.Award(ctx, user.ID, ActionAttendanceMarked)
	require.NoError(t, err)
	assert.Equal(t, 15, granted)

	balance, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	history, err := ledger.History(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ActionAttendanceMarked, history[0].Action)
	assert.Equal(t, 15, history[0].Points)
	assert.Equal(t, 15, history[0].BalanceAfter)
}

func TestLedger_AwardUnknownAction(t *testing.T) {
	ledger, db, _ := setupLedger(t)
	ctx := context.Background()
	user := createUser(t, db, 7)

	granted, err := ledger.Award(ctx, user.ID, "no.such.action")
	require.NoError(t, err)
	assert.Equal(t, 0, granted)

	balance, _ := ledger.Balance(ctx, user.ID)
	assert.Equal(t, 7, balance)

	history, _ := ledger.History(ctx, user.ID, 0)
	assert.Empty(t, history)
}

func TestLedger_AwardZeroValuedAction(t *testing.T) {
	db := testdb.New(t)
	catalog, err := NewCatalog(map[string]int{"free": 0})
	require.NoError(t, err)
	ledger := NewLedger(db, catalog, nil, logger.Nop())
	user := createUser(t, db, 0)

	granted, err := ledger.Award(context.Background(), user.ID, "free")
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestLedger_UnitOfWorkDeduplicates(t *testing.T) {
	ledger, db, _ := setupLedger(t)
	ctx := WithUnitOfWork(context.Background())
	user := createUser(t, db, 0)

	first, err := ledger.Award(ctx, user.ID, ActionVideoWatched)
	require.NoError(t, err)
	second, err := ledger.Award(ctx, user.ID, ActionVideoWatched)
	require.NoError(t, err)

	assert.Equal(t, 5, first)
	assert.Equal(t, 0, second)

	balance, _ := ledger.Balance(ctx, user.ID)
	assert.Equal(t, 5, balance)

	// A new unit awards again.
	third, err := ledger.Award(WithUnitOfWork(context.Background()), user.ID, ActionVideoWatched)
	require.NoError(t, err)
	assert.Equal(t, 5, third)
}

func TestLedger_WithoutUnitEachCallAwards(t *testing.T) {
	ledger, db, _ := setupLedger(t)
	ctx := context.Background()
	user := createUser(t, db, 0)

	for i := 0; i < 3; i++ {
		granted, err := ledger.Award(ctx, user.ID, ActionUserLogin)
		require.NoError(t, err)
		assert.Equal(t, 1, granted)
	}

	balance, _ := ledger.Balance(ctx, user.ID)
	assert.Equal(t, 3, balance)
}

func TestLedger_MissingUserReleasesClaim(t *testing.T) {
	ledger, db, _ := setupLedger(t)
	ctx := WithUnitOfWork(context.Background())

	_, err := ledger.Award(ctx, 42, ActionFormSubmitted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserNotFound))

	unit, _ := UnitFromContext(ctx)
	assert.False(t, unit.Awarded(42, ActionFormSubmitted))

	require.NoError(t, db.Create(&models.User{ID: 42, FirstName: "Late", Role: models.RoleMember}).Error)

	granted, err := ledger.Award(ctx, 42, ActionFormSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 5, granted)

	history, _ := ledger.History(ctx, 42, 0)
	assert.Len(t, history, 1)
}

var errCommit = errors.New("commit failed")

// failingCommitPool hands out transactions whose commit always fails.
type failingCommitPool struct {
	*sql.DB
}

func (p *failingCommitPool) BeginTx(ctx context.Context, opts *sql.TxOptions) (gorm.ConnPool, error) {
	tx, err := p.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &failingCommitTx{Tx: tx}, nil
}

type failingCommitTx struct {
	*sql.Tx
}

func (t *failingCommitTx) Commit() error {
	_ = t.Tx.Rollback()
	return errCommit
}

func TestLedger_FailedCommitReleasesClaim(t *testing.T) {
	ledger, db, c := setupLedger(t)
	ctx := WithUnitOfWork(context.Background())
	user := createUser(t, db, 0)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	failing, err := gorm.Open(sqlite.Dialector{Conn: &failingCommitPool{DB: sqlDB}}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	broken := NewLedger(&repository.DB{DB: failing}, DefaultCatalog(), c, logger.Nop())

	_, err = broken.Award(ctx, user.ID, ActionFormSubmitted)
	require.ErrorIs(t, err, errCommit)

	unit, _ := UnitFromContext(ctx)
	assert.False(t, unit.Awarded(user.ID, ActionFormSubmitted))
	balance, _ := ledger.Balance(ctx, user.ID)
	assert.Equal(t, 0, balance)

	granted, err := ledger.Award(ctx, user.ID, ActionFormSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 5, granted)
	assert.True(t, unit.Awarded(user.ID, ActionFormSubmitted))

	granted, err = ledger.Award(ctx, user.ID, ActionFormSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
}

func TestLedger_BalanceMissingUser(t *testing.T) {
	ledger, _, _ := setupLedger(t)

	_, err := ledger.Balance(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedger_AwardInvalidatesLeaderboard(t *testing.T) {
	ledger, db, c := setupLedger(t)
	ctx := context.Background()
	user := createUser(t, db, 0)

	key := cache.LeaderboardKey("")
	require.NoError(t, c.Set(ctx, key, "[]", 0))

	_, err := ledger.Award(ctx, user.ID, ActionMessageSent)
	require.NoError(t, err)

	assert.False(t, c.Has(key))
}
