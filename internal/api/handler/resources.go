package handler

import (
	"time"

	"github.com/aimd54/congregation/internal/models"
)

// UserResource is the public projection of a user.
type UserResource struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	RewardPoints int    `json:"reward_points"`
}

// NewUserResource projects a user.
func NewUserResource(u *models.User) *UserResource {
	if u == nil {
		return nil
	}
	return &UserResource{
		ID:           u.ID,
		Name:         u.FullName(),
		Role:         u.Role,
		RewardPoints: u.RewardPoints,
	}
}

// ItemResource is the public projection of a reward item.
type ItemResource struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	PointsRequired int    `json:"points_required"`
	Stock          *int   `json:"stock"`
	Unlimited      bool   `json:"unlimited"`
	Available      bool   `json:"available"`
	IsActive       bool   `json:"is_active"`
	TotalRedeemed  int    `json:"total_redeemed"`
}

// NewItemResource projects a reward item.
func NewItemResource(item *models.RewardItem) *ItemResource {
	if item == nil {
		return nil
	}
	return &ItemResource{
		ID:             item.ID,
		Title:          item.Title,
		Description:    item.Description,
		PointsRequired: item.PointsRequired,
		Stock:          item.Stock,
		Unlimited:      item.Unlimited(),
		Available:      item.IsActive && (item.Unlimited() || *item.Stock > 0),
		IsActive:       item.IsActive,
		TotalRedeemed:  item.TotalRedeemed,
	}
}

// NewItemResources projects a list of reward items.
func NewItemResources(items []models.RewardItem) []*ItemResource {
	out := make([]*ItemResource, 0, len(items))
	for i := range items {
		out = append(out, NewItemResource(&items[i]))
	}
	return out
}

// RedemptionResource is the public projection of a redemption. Item is only
// set when the caller supplies it.
type RedemptionResource struct {
	Reference   string        `json:"reference"`
	ItemID      uint          `json:"item_id"`
	Item        *ItemResource `json:"item,omitempty"`
	PointsSpent int           `json:"points_spent"`
	RedeemedAt  time.Time     `json:"redeemed_at"`
}

// NewRedemptionResource projects a redemption with an optional item.
func NewRedemptionResource(r *models.Redemption, item *models.RewardItem) *RedemptionResource {
	return &RedemptionResource{
		Reference:   r.Reference,
		ItemID:      r.RewardItemID,
		Item:        NewItemResource(item),
		PointsSpent: r.PointsSpent,
		RedeemedAt:  r.RedeemedAt,
	}
}

// LedgerEntryResource is one balance change.
type LedgerEntryResource struct {
	ID           uint      `json:"id"`
	Action       string    `json:"action"`
	Points       int       `json:"points"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewLedgerEntryResources projects ledger rows.
func NewLedgerEntryResources(entries []models.PointTransaction) []LedgerEntryResource {
	out := make([]LedgerEntryResource, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResource{
			ID:           e.ID,
			Action:       e.Action,
			Points:       e.Points,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

// RegistrationResource is the public projection of a picnic registration.
// User is only set when the caller supplies it.
type RegistrationResource struct {
	ID            uint          `json:"id"`
	Year          int           `json:"year"`
	Games         []string      `json:"games"`
	SupportAmount *float64      `json:"support_amount"`
	RegisteredAt  time.Time     `json:"registered_at"`
	User          *UserResource `json:"user,omitempty"`
}

// NewRegistrationResource projects a registration with an optional user.
func NewRegistrationResource(r *models.GameRegistration, user *models.User) *RegistrationResource {
	games := make([]string, len(r.Games))
	copy(games, r.Games)
	return &RegistrationResource{
		ID:            r.ID,
		Year:          r.Year,
		Games:         games,
		SupportAmount: r.SupportAmount,
		RegisteredAt:  r.RegisteredAt,
		User:          NewUserResource(user),
	}
}

// AttendanceResource is the public projection of an attendance record.
type AttendanceResource struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	ServiceDate string    `json:"service_date"`
	Usher       bool      `json:"usher"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAttendanceResource projects an attendance record.
func NewAttendanceResource(a *models.Attendance) *AttendanceResource {
	return &AttendanceResource{
		ID:          a.ID,
		UserID:      a.UserID,
		ServiceDate: a.ServiceDate.Format(dateLayout),
		Usher:       a.Usher,
		CreatedAt:   a.CreatedAt,
	}
}

// NewAttendanceResources projects attendance records.
func NewAttendanceResources(attendances []models.Attendance) []*AttendanceResource {
	out := make([]*AttendanceResource, 0, len(attendances))
	for i := range attendances {
		out = append(out, NewAttendanceResource(&attendances[i]))
	}
	return out
}
