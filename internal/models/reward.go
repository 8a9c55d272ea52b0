package models

import (
	"time"
)

// PointTransaction is an append-only ledger row recording a balance change.
type PointTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Action       string    `gorm:"size:100;not null;index" json:"action"`
	Points       int       `gorm:"not null" json:"points"` // negative for redemptions
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for PointTransaction model.
func (PointTransaction) TableName() string {
	return "point_transactions"
}

// RewardItem represents a redeemable catalog entry.
type RewardItem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	PointsRequired int       `gorm:"not null" json:"points_required"`
	Stock          *int      `json:"stock"` // nil means unlimited
	IsActive       bool      `gorm:"not null" json:"is_active"`
	TotalRedeemed  int       `gorm:"not null;default:0" json:"total_redeemed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for RewardItem model.
func (RewardItem) TableName() string {
	return "reward_items"
}

// Unlimited reports whether the item has no stock limit.
func (i *RewardItem) Unlimited() bool {
	return i.Stock == nil
}

// Redemption links a user to a redeemed item. PointsSpent is a snapshot of
// the item's PointsRequired at redemption time.
type Redemption struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Reference    string      `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	UserID       uint        `gorm:"not null;index" json:"user_id"`
	User         *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RewardItemID uint        `gorm:"not null;index" json:"reward_item_id"`
	RewardItem   *RewardItem `gorm:"foreignKey:RewardItemID" json:"reward_item,omitempty"`
	PointsSpent  int         `gorm:"not null" json:"points_spent"`
	RedeemedAt   time.Time   `gorm:"not null" json:"redeemed_at"`
}

// TableName specifies the table name for Redemption model.
func (Redemption) TableName() string {
	return "reward_redemptions"
}

// ActionRedeemed is the ledger action recorded for redemptions.
const ActionRedeemed = "rewards.redeemed"
