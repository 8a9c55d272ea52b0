// Package handler provides the REST API of the congregation backend.
// It exposes endpoints for reward points, the reward catalog, picnic
// registrations, attendance and the leaderboard.
package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/leaderboard"
	"github.com/aimd54/congregation/internal/service/membership"
	"github.com/aimd54/congregation/internal/service/picnic"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/internal/service/rewards"
	"github.com/aimd54/congregation/internal/validation"
	"github.com/aimd54/congregation/pkg/logger"
)

// UserIDHeader identifies the calling user.
const UserIDHeader = "X-User-ID"

// PointsService interface for ledger operations.
type PointsService interface {
	Award(ctx context.Context, userID uint, action string) (int, error)
	Balance(ctx context.Context, userID uint) (int, error)
	History(ctx context.Context, userID uint, limit int) ([]models.PointTransaction, error)
}

// RewardsService interface for catalog and redemption operations.
type RewardsService interface {
	Redeem(ctx context.Context, userID, itemID uint) (*rewards.Receipt, error)
	CreateItem(ctx context.Context, input rewards.ItemInput) (*models.RewardItem, error)
	UpdateItem(ctx context.Context, id uint, input rewards.ItemInput) (*models.RewardItem, error)
	GetItem(ctx context.Context, id uint) (*models.RewardItem, error)
	ListItems(ctx context.Context, activeOnly bool) ([]models.RewardItem, error)
	UserRedemptions(ctx context.Context, userID uint) ([]models.Redemption, error)
}

// PicnicService interface for picnic registration operations.
type PicnicService interface {
	Register(ctx context.Context, userID uint, year int, games []string, supportAmount *float64) (*models.GameRegistration, bool, error)
	GetRegistration(ctx context.Context, userID uint, year int) (*models.GameRegistration, error)
	Withdraw(ctx context.Context, userID uint, year int) error
	Report(ctx context.Context, year int) (*picnic.Report, error)
	GameDetail(ctx context.Context, year int, game string) (*picnic.GameGroup, error)
}

// MembershipService interface for attendance and promotion operations.
type MembershipService interface {
	MarkAttendance(ctx context.Context, userID uint, serviceDate time.Time, usher bool) (*membership.AttendanceResult, error)
	EvaluateAll(ctx context.Context) ([]models.User, error)
	History(ctx context.Context, userID uint, limit int) ([]models.Attendance, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, role string, limit int) ([]leaderboard.Entry, error)
	GetUserStanding(ctx context.Context, userID uint) (*leaderboard.Standing, error)
}

// RateLimiter limits requests per key.
type RateLimiter interface {
	AllowPerMinute(ctx context.Context, key string, perMinute int) (bool, time.Duration, error)
}

// HealthCheck is a named dependency check for /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler handles API requests.
type Handler struct {
	pointsService      PointsService
	rewardsService     RewardsService
	picnicService      PicnicService
	membershipService  MembershipService
	leaderboardService LeaderboardService
	limiter            RateLimiter
	redeemPerMinute    int
	healthChecks       []HealthCheck
	log                *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	ledger *points.Ledger,
	rewardsService *rewards.Service,
	picnicService *picnic.Service,
	membershipService *membership.Service,
	leaderboardService *leaderboard.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(ledger, rewardsService, picnicService, membershipService, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new API handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	pointsService PointsService,
	rewardsService RewardsService,
	picnicService PicnicService,
	membershipService MembershipService,
	leaderboardService LeaderboardService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		pointsService:      pointsService,
		rewardsService:     rewardsService,
		picnicService:      picnicService,
		membershipService:  membershipService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// SetRedeemLimit rate limits redemptions per user. perMinute <= 0 disables the limit.
func (h *Handler) SetRedeemLimit(limiter RateLimiter, perMinute int) {
	h.limiter = limiter
	h.redeemPerMinute = perMinute
}

// SetHealthChecks replaces the checks run by /health.
func (h *Handler) SetHealthChecks(checks ...HealthCheck) {
	h.healthChecks = checks
}

// Helper functions

// parseID extracts and validates a numeric URL parameter.
func (h *Handler) parseID(c *gin.Context, name string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", name, idStr)
	}
	return uint(id), nil
}

// currentUserID reads the caller from the X-User-ID header.
func (h *Handler) currentUserID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader(UserIDHeader)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		h.errorResponse(c, http.StatusUnauthorized, "A valid X-User-ID header is required")
		return 0, false
	}
	return uint(id), true
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// parseYear extracts the optional year query parameter. 0 means the current year.
func (h *Handler) parseYear(c *gin.Context) (int, error) {
	yearStr := c.Query("year")
	if yearStr == "" {
		return 0, nil
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return 0, fmt.Errorf("invalid year parameter: %s", yearStr)
	}
	return year, nil
}

// handleError maps service errors to HTTP responses.
func (h *Handler) handleError(c *gin.Context, err error, message string) {
	if vErr, ok := validation.As(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     vErr.Message,
			"errors":    gin.H{vErr.Field: []string{vErr.Message}},
			"timestamp": time.Now().UTC(),
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrRetryable):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("Retryable failure")
		c.Header("Retry-After", "1")
		h.errorResponse(c, http.StatusServiceUnavailable, "The service is busy, please retry")
	case errors.Is(err, points.ErrUserNotFound):
		h.errorResponse(c, http.StatusNotFound, "User not found")
	case errors.Is(err, rewards.ErrItemNotFound):
		h.errorResponse(c, http.StatusNotFound, "Reward item not found")
	case errors.Is(err, picnic.ErrRegistrationNotFound):
		h.errorResponse(c, http.StatusNotFound, "Picnic registration not found")
	case errors.Is(err, picnic.ErrGameNotFound):
		h.errorResponse(c, http.StatusNotFound, "Picnic game not found")
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}

// retryAfterSeconds rounds a wait up to whole seconds, at least 1.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
