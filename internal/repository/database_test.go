package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aimd54/congregation/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	wrapped := &DB{db}
	if err := wrapped.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return wrapped
}

// createTestUser creates a test user in the database.
func createTestUser(t *testing.T, db *DB, firstName string, points int) *models.User {
	t.Helper()

	user := &models.User{
		FirstName:    firstName,
		LastName:     "Tester",
		Email:        firstName + "@example.com",
		Role:         models.RoleFirstTimer,
		RewardPoints: points,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

func TestDB_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice", 10)

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *DB) error {
		if _, err := NewUserRepository(tx).IncrementPoints(ctx, user.ID, 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	points, err := NewUserRepository(db).GetPoints(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetPoints failed: %v", err)
	}
	if points != 10 {
		t.Errorf("Expected rolled back balance 10, got %d", points)
	}
}

func TestDB_SetLockTimeoutIgnoredOnSQLite(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(context.Background(), func(tx *DB) error {
		return tx.SetLockTimeout(5)
	})
	if err != nil {
		t.Errorf("Expected no error on sqlite, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("nope"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"record not found", gorm.ErrRecordNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("nope"), false},
		{"translated", fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.err); got != tt.want {
				t.Errorf("IsDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate_SQLiteUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPicnicRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "twice", 0)

	first := &models.GameRegistration{UserID: user.ID, Year: 2026, Games: []string{"Chess"}}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := repo.Create(ctx, &models.GameRegistration{UserID: user.ID, Year: 2026, Games: []string{"Ludo"}})
	if !IsDuplicate(err) {
		t.Errorf("Expected duplicate registration error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Expected nil for nil error")
	}

	plain := errors.New("plain")
	if got := Classify(plain); got != plain {
		t.Errorf("Expected plain error unchanged, got %v", got)
	}

	pgErr := &pgconn.PgError{Code: "40001"}
	got := Classify(pgErr)
	if !errors.Is(got, ErrRetryable) {
		t.Errorf("Expected ErrRetryable, got %v", got)
	}
	var unwrapped *pgconn.PgError
	if !errors.As(got, &unwrapped) {
		t.Error("Expected original PgError to stay reachable")
	}

	if again := Classify(got); again != got {
		t.Error("Expected already classified error to be returned as is")
	}
}
