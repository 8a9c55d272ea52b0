//nolint:noctx // Test file uses http.NewRequest for simplicity
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/leaderboard"
	"github.com/aimd54/congregation/internal/service/membership"
	"github.com/aimd54/congregation/internal/service/picnic"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/internal/service/rewards"
	"github.com/aimd54/congregation/internal/validation"
	"github.com/aimd54/congregation/pkg/logger"
	"github.com/aimd54/congregation/test/mocks"
	"github.com/aimd54/congregation/test/testdb"
)

// Mock Rewards Service
type mockRewardsService struct {
	items       map[uint]*models.RewardItem
	redemptions map[uint][]models.Redemption
	redeemErr   error
	redeemCalls int
	lastInput   rewards.ItemInput
}

func newMockRewardsService() *mockRewardsService {
	return &mockRewardsService{
		items:       make(map[uint]*models.RewardItem),
		redemptions: make(map[uint][]models.Redemption),
	}
}

func (m *mockRewardsService) Redeem(_ context.Context, userID, itemID uint) (*rewards.Receipt, error) {
	m.redeemCalls++
	if m.redeemErr != nil {
		return nil, m.redeemErr
	}
	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", itemID, rewards.ErrItemNotFound)
	}
	return &rewards.Receipt{
		Reference:       "ref-1",
		Item:            *item,
		PointsSpent:     item.PointsRequired,
		RemainingPoints: 5,
		RedeemedAt:      time.Now().UTC(),
		Message:         fmt.Sprintf("You have successfully redeemed %s.", item.Title),
	}, nil
}

func (m *mockRewardsService) CreateItem(_ context.Context, input rewards.ItemInput) (*models.RewardItem, error) {
	m.lastInput = input
	if input.Title == nil {
		return nil, validation.New("title", rewards.ErrInvalidItem, "The title field is required.")
	}
	item := &models.RewardItem{ID: uint(len(m.items) + 1), Title: *input.Title, IsActive: true}
	if input.PointsRequired != nil {
		item.PointsRequired = *input.PointsRequired
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *mockRewardsService) UpdateItem(_ context.Context, id uint, input rewards.ItemInput) (*models.RewardItem, error) {
	m.lastInput = input
	item, ok := m.items[id]
	if !ok {
		return nil, rewards.ErrItemNotFound
	}
	if input.Title != nil {
		item.Title = *input.Title
	}
	return item, nil
}

func (m *mockRewardsService) GetItem(_ context.Context, id uint) (*models.RewardItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, rewards.ErrItemNotFound
	}
	return item, nil
}

func (m *mockRewardsService) ListItems(_ context.Context, activeOnly bool) ([]models.RewardItem, error) {
	items := make([]models.RewardItem, 0, len(m.items))
	for id := uint(1); id <= uint(len(m.items)); id++ {
		if item, ok := m.items[id]; ok && (!activeOnly || item.IsActive) {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (m *mockRewardsService) UserRedemptions(_ context.Context, userID uint) ([]models.Redemption, error) {
	return m.redemptions[userID], nil
}

// Mock Picnic Service
type mockPicnicService struct {
	registrations map[uint]*models.GameRegistration
	registerErr   error
	lastYear      int
}

func newMockPicnicService() *mockPicnicService {
	return &mockPicnicService{registrations: make(map[uint]*models.GameRegistration)}
}

func (m *mockPicnicService) Register(_ context.Context, userID uint, year int, games []string, support *float64) (*models.GameRegistration, bool, error) {
	if m.registerErr != nil {
		return nil, false, m.registerErr
	}
	existing, ok := m.registrations[userID]
	if ok {
		existing.Games = games
		existing.SupportAmount = support
		return existing, false, nil
	}
	reg := &models.GameRegistration{ID: userID, UserID: userID, Year: year, Games: games, SupportAmount: support}
	m.registrations[userID] = reg
	return reg, true, nil
}

func (m *mockPicnicService) GetRegistration(_ context.Context, userID uint, year int) (*models.GameRegistration, error) {
	m.lastYear = year
	reg, ok := m.registrations[userID]
	if !ok {
		return nil, picnic.ErrRegistrationNotFound
	}
	return reg, nil
}

func (m *mockPicnicService) Withdraw(_ context.Context, userID uint, _ int) error {
	if _, ok := m.registrations[userID]; !ok {
		return picnic.ErrRegistrationNotFound
	}
	delete(m.registrations, userID)
	return nil
}

func (m *mockPicnicService) Report(_ context.Context, year int) (*picnic.Report, error) {
	m.lastYear = year
	return &picnic.Report{
		Year: 2026,
		Groups: []picnic.GameGroup{
			{Game: "Ludo", TotalMembers: 1, Coordinator: &picnic.Coordinator{UserID: 1, Name: "Ada Obi"}},
		},
		Stats: picnic.Stats{TotalRegistrations: 1, Capacity: 200, AvailableSlots: 199},
	}, nil
}

func (m *mockPicnicService) GameDetail(_ context.Context, _ int, game string) (*picnic.GameGroup, error) {
	if game != "Ludo" {
		return nil, picnic.ErrGameNotFound
	}
	return &picnic.GameGroup{Game: game}, nil
}

// Mock Membership Service
type mockMembershipService struct {
	marked       map[string]bool
	promoted     []models.User
	history      []models.Attendance
	historyLimit int
}

func newMockMembershipService() *mockMembershipService {
	return &mockMembershipService{marked: make(map[string]bool)}
}

func (m *mockMembershipService) MarkAttendance(_ context.Context, userID uint, date time.Time, usher bool) (*membership.AttendanceResult, error) {
	if userID == 404 {
		return nil, points.ErrUserNotFound
	}
	key := fmt.Sprintf("%d:%s", userID, date.Format(dateLayout))
	created := !m.marked[key]
	m.marked[key] = true

	awarded := 0
	if created {
		awarded = 15
	}
	return &membership.AttendanceResult{
		Attendance:    models.Attendance{ID: 1, UserID: userID, ServiceDate: date, Usher: usher},
		Created:       created,
		PointsAwarded: awarded,
		Role:          models.RoleFirstTimer,
	}, nil
}

func (m *mockMembershipService) EvaluateAll(_ context.Context) ([]models.User, error) {
	return m.promoted, nil
}

func (m *mockMembershipService) History(_ context.Context, _ uint, limit int) ([]models.Attendance, error) {
	m.historyLimit = limit
	return m.history, nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	entries   map[string][]leaderboard.Entry
	standings map[uint]*leaderboard.Standing
	err       error
}

func newMockLeaderboardService() *mockLeaderboardService {
	return &mockLeaderboardService{
		entries:   make(map[string][]leaderboard.Entry),
		standings: make(map[uint]*leaderboard.Standing),
	}
}

func (m *mockLeaderboardService) GetLeaderboard(_ context.Context, role string, limit int) ([]leaderboard.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	entries := m.entries[role]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLeaderboardService) GetUserStanding(_ context.Context, userID uint) (*leaderboard.Standing, error) {
	standing, ok := m.standings[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, leaderboard.ErrUserNotFound)
	}
	return standing, nil
}

// Mock Rate Limiter
type mockLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (m *mockLimiter) AllowPerMinute(_ context.Context, key string, _ int) (bool, time.Duration, error) {
	m.keys = append(m.keys, key)
	return m.allowed, 1500 * time.Millisecond, m.err
}

// Test Setup
type testDeps struct {
	db          *repository.DB
	rewards     *mockRewardsService
	picnic      *mockPicnicService
	membership  *mockMembershipService
	leaderboard *mockLeaderboardService
}

func setupTestHandler(t *testing.T) (*Handler, *testDeps) {
	t.Helper()

	db := testdb.New(t)
	deps := &testDeps{
		db:          db,
		rewards:     newMockRewardsService(),
		picnic:      newMockPicnicService(),
		membership:  newMockMembershipService(),
		leaderboard: newMockLeaderboardService(),
	}

	ledger := points.NewLedger(db, points.DefaultCatalog(), mocks.NewMockCache(), logger.Nop())
	h := NewHandlerWithInterfaces(ledger, deps.rewards, deps.picnic, deps.membership, deps.leaderboard, logger.Nop())

	return h, deps
}

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(h, logger.Nop())
}

func createUser(t *testing.T, db *repository.DB, balance int) *models.User {
	t.Helper()

	user := &models.User{FirstName: "Ada", LastName: "Obi", Role: models.RoleFirstTimer, RewardPoints: balance}
	require.NoError(t, db.Create(user).Error)
	return user
}

func doRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func asUser(id uint) map[string]string {
	return map[string]string{UserIDHeader: fmt.Sprint(id)}
}

// Tests

func TestAwardPoints_DuplicateActionsGrantedOnce(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	user := createUser(t, deps.db, 0)

	w := doRequest(router, http.MethodPost, "/api/v1/points/award", gin.H{
		"user_id": user.ID,
		"actions": []string{points.ActionAttendanceMarked, points.ActionAttendanceMarked, points.ActionEventsRegistered},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(25), response["total_awarded"])
	assert.Equal(t, float64(25), response["balance"])

	grants := response["grants"].([]interface{})
	require.Len(t, grants, 3)
	assert.Equal(t, float64(0), grants[1].(map[string]interface{})["points"])
}

func TestAwardPoints_UnitIsPerRequest(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	user := createUser(t, deps.db, 0)

	body := gin.H{"user_id": user.ID, "actions": []string{points.ActionUserLogin}}
	doRequest(router, http.MethodPost, "/api/v1/points/award", body, nil)
	w := doRequest(router, http.MethodPost, "/api/v1/points/award", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["balance"])
}

func TestAwardPoints_UnknownAction(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	user := createUser(t, deps.db, 7)

	w := doRequest(router, http.MethodPost, "/api/v1/points/award", gin.H{
		"user_id": user.ID,
		"actions": []string{"does.not.exist"},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(0), response["total_awarded"])
	assert.Equal(t, float64(7), response["balance"])
}

func TestAwardPoints_UserNotFound(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/points/award", gin.H{
		"user_id": 999,
		"actions": []string{points.ActionUserLogin},
	}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["error"])
}

func TestAwardPoints_InvalidBody(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/points/award", gin.H{"user_id": 1}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Invalid request body")
}

func TestGetUserPoints(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	user := createUser(t, deps.db, 0)

	doRequest(router, http.MethodPost, "/api/v1/points/award", gin.H{
		"user_id": user.ID,
		"actions": []string{points.ActionAttendanceMarked, points.ActionEventsRegistered},
	}, nil)

	w := doRequest(router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/points?limit=1", user.ID), nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(25), response["balance"])

	history := response["history"].([]interface{})
	require.Len(t, history, 1)
	assert.Equal(t, points.ActionEventsRegistered, history[0].(map[string]interface{})["action"])
}

func TestGetUserPoints_InvalidID(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodGet, "/api/v1/users/abc/points", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid user ID")
}

func TestRedeemItem_Success(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.rewards.items[1] = &models.RewardItem{ID: 1, Title: "Mug", PointsRequired: 10, IsActive: true}

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "ref-1", response["reference"])
	assert.Equal(t, float64(10), response["points_spent"])
	assert.Equal(t, "You have successfully redeemed Mug.", response["message"])
}

func TestRedeemItem_RequiresUserHeader(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, deps.rewards.redeemCalls)
}

func TestRedeemItem_InsufficientPoints(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.rewards.redeemErr = validation.New("points", rewards.ErrInsufficientPoints,
		"Insufficient points. You need %d points but only have %d.", 30, 25)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	response := decode(t, w)
	fieldErrors := response["errors"].(map[string]interface{})
	messages := fieldErrors["points"].([]interface{})
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "30")
	assert.Contains(t, messages[0], "25")
	assert.NotNil(t, response["timestamp"])
}

func TestRedeemItem_Retryable(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.rewards.redeemErr = fmt.Errorf("%w: lock timeout", repository.ErrRetryable)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRedeemItem_NotFound(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/9/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedeemItem_RateLimited(t *testing.T) {
	h, deps := setupTestHandler(t)
	limiter := &mockLimiter{allowed: false}
	h.SetRedeemLimit(limiter, 5)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, []string{"redeem:3"}, limiter.keys)
	assert.Equal(t, 0, deps.rewards.redeemCalls)
}

func TestRedeemItem_LimiterFailureAllows(t *testing.T) {
	h, deps := setupTestHandler(t)
	deps.rewards.items[1] = &models.RewardItem{ID: 1, Title: "Mug", PointsRequired: 10, IsActive: true}
	h.SetRedeemLimit(&mockLimiter{err: errors.New("redis down")}, 5)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/rewards/items/1/redeem", nil, asUser(3))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, deps.rewards.redeemCalls)
}

func TestListAndGetItems(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	stock := 0
	deps.rewards.items[1] = &models.RewardItem{ID: 1, Title: "Mug", PointsRequired: 10, IsActive: true}
	deps.rewards.items[2] = &models.RewardItem{ID: 2, Title: "Book", PointsRequired: 20, IsActive: true, Stock: &stock}
	deps.rewards.items[3] = &models.RewardItem{ID: 3, Title: "Old", PointsRequired: 5, IsActive: false}

	w := doRequest(router, http.MethodGet, "/api/v1/rewards/items", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(2), response["total_items"])

	items := response["items"].([]interface{})
	mug := items[0].(map[string]interface{})
	book := items[1].(map[string]interface{})
	assert.Equal(t, true, mug["unlimited"])
	assert.Equal(t, true, mug["available"])
	assert.Equal(t, false, book["available"])

	w = doRequest(router, http.MethodGet, "/api/v1/rewards/items/2", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rewards/items/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserRedemptions_IncludesItemOnlyWhenLoaded(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	item := &models.RewardItem{ID: 1, Title: "Mug", PointsRequired: 10, IsActive: true}
	deps.rewards.redemptions[3] = []models.Redemption{
		{Reference: "a", UserID: 3, RewardItemID: 1, RewardItem: item, PointsSpent: 10},
		{Reference: "b", UserID: 3, RewardItemID: 2, PointsSpent: 8},
	}

	w := doRequest(router, http.MethodGet, "/api/v1/users/3/redemptions", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	redemptions := decode(t, w)["redemptions"].([]interface{})
	require.Len(t, redemptions, 2)
	assert.Contains(t, redemptions[0], "item")
	assert.NotContains(t, redemptions[1], "item")
}

func TestCreateAndUpdateItem(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/admin/rewards/items", gin.H{
		"title": "Mug", "points_required": 10,
	}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/admin/rewards/items", gin.H{"points_required": 10}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["errors"], "title")

	w = doRequest(router, http.MethodPut, "/api/v1/admin/rewards/items/1", gin.H{"title": "Big mug", "unlimited": true}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, deps.rewards.lastInput.Unlimited)
	assert.Equal(t, "Big mug", deps.rewards.items[1].Title)
}

func TestPicnicRegistrationLifecycle(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPut, "/api/v1/picnic/registrations", gin.H{
		"year": 2026, "games": []string{"Ludo"},
	}, asUser(5))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["created"])

	w = doRequest(router, http.MethodPut, "/api/v1/picnic/registrations", gin.H{
		"year": 2026, "games": []string{"Chess"}, "support_amount": 12.5,
	}, asUser(5))
	assert.Equal(t, http.StatusOK, w.Code)
	registration := decode(t, w)["registration"].(map[string]interface{})
	assert.Equal(t, []interface{}{"Chess"}, registration["games"])
	assert.NotContains(t, registration, "user")

	w = doRequest(router, http.MethodGet, "/api/v1/picnic/registrations/me?year=2026", nil, asUser(5))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2026, deps.picnic.lastYear)

	w = doRequest(router, http.MethodDelete, "/api/v1/picnic/registrations/me?year=2026", nil, asUser(5))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/picnic/registrations/me", nil, asUser(5))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPicnicRegistration_ValidationError(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.picnic.registerErr = validation.New("games", picnic.ErrCapacityReached, "Registration is closed.")

	w := doRequest(router, http.MethodPut, "/api/v1/picnic/registrations", gin.H{"games": []string{"Ludo"}}, asUser(5))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Registration is closed.", decode(t, w)["error"])
}

func TestPicnicRegistration_InvalidYear(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodGet, "/api/v1/picnic/registrations/me?year=abc", nil, asUser(5))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPicnicReportAndGame(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodGet, "/api/v1/admin/picnic/report", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(2026), response["year"])
	assert.Len(t, response["groups"], 1)

	w = doRequest(router, http.MethodGet, "/api/v1/admin/picnic/games/Ludo", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/admin/picnic/games/Darts", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkAttendance(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)
	body := gin.H{"user_id": 7, "service_date": "2026-09-06"}

	w := doRequest(router, http.MethodPost, "/api/v1/attendance", body, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(15), response["points_awarded"])
	assert.Equal(t, "2026-09-06", response["attendance"].(map[string]interface{})["service_date"])

	w = doRequest(router, http.MethodPost, "/api/v1/attendance", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["points_awarded"])
}

func TestMarkAttendance_InvalidDate(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/attendance", gin.H{"user_id": 7, "service_date": "06/09/2026"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkAttendance_UserNotFound(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodPost, "/api/v1/attendance", gin.H{"user_id": 404}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserAttendance(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.membership.history = []models.Attendance{
		{ID: 2, UserID: 7, ServiceDate: time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC), Usher: true},
		{ID: 1, UserID: 7, ServiceDate: time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)},
	}

	w := doRequest(router, http.MethodGet, "/api/v1/users/7/attendance?limit=5", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, deps.membership.historyLimit)
	response := decode(t, w)
	assert.Equal(t, float64(2), response["total"])
	attendance := response["attendance"].([]interface{})
	require.Len(t, attendance, 2)
	first := attendance[0].(map[string]interface{})
	assert.Equal(t, "2026-09-13", first["service_date"])
	assert.Equal(t, true, first["usher"])
}

func TestGetUserAttendance_InvalidParams(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodGet, "/api/v1/users/abc/attendance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/users/7/attendance?limit=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateMembership(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.membership.promoted = []models.User{{ID: 1, FirstName: "Ada", Role: models.RoleMember}}

	w := doRequest(router, http.MethodPost, "/api/v1/admin/membership/evaluate", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total_promoted"])
}

func TestGetLeaderboard(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.leaderboard.entries[models.RoleMember] = []leaderboard.Entry{
		{Rank: 1, UserID: 1, Name: "Ada", Points: 50},
		{Rank: 2, UserID: 2, Name: "Ben", Points: 40},
	}

	w := doRequest(router, http.MethodGet, "/api/v1/leaderboard?role=member&limit=1", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "member", response["role"])
	assert.Equal(t, float64(1), response["total_entries"])
}

func TestGetLeaderboard_InvalidParams(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	w := doRequest(router, http.MethodGet, "/api/v1/leaderboard?role=bishop", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid role")

	w = doRequest(router, http.MethodGet, "/api/v1/leaderboard?limit=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/leaderboard?limit=5000", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLeaderboard_ServiceError(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.leaderboard.err = errors.New("boom")

	w := doRequest(router, http.MethodGet, "/api/v1/leaderboard", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve leaderboard", decode(t, w)["error"])
}

func TestGetUserStanding(t *testing.T) {
	h, deps := setupTestHandler(t)
	router := setupRouter(h)
	deps.leaderboard.standings[1] = &leaderboard.Standing{UserID: 1, Balance: 25, Rank: 1}

	w := doRequest(router, http.MethodGet, "/api/v1/users/1/standing", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/users/2/standing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := setupRouter(h)

	h.SetHealthChecks(HealthCheck{Name: "database", Check: func(context.Context) error { return nil }})
	w := doRequest(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	h.SetHealthChecks(
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	w = doRequest(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := decode(t, w)
	assert.Equal(t, "unhealthy", response["status"])
	assert.Equal(t, "connection refused", response["checks"].(map[string]interface{})["redis"])
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", retryAfterSeconds(0))
	assert.Equal(t, "1", retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, "3", retryAfterSeconds(2100*time.Millisecond))
}
