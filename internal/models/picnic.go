package models

import (
	"time"

	"gorm.io/datatypes"
)

// GameRegistration is a user's picnic game selection for a year.
type GameRegistration struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	UserID        uint                        `gorm:"not null;uniqueIndex:idx_picnic_user_year" json:"user_id"`
	User          *User                       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Year          int                         `gorm:"not null;uniqueIndex:idx_picnic_user_year;index" json:"year"`
	Games         datatypes.JSONSlice[string] `gorm:"not null" json:"games"`
	SupportAmount *float64                    `gorm:"type:decimal(12,2)" json:"support_amount"`
	RegisteredAt  time.Time                   `gorm:"not null" json:"registered_at"` // kept from the first registration
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for GameRegistration model.
func (GameRegistration) TableName() string {
	return "picnic_registrations"
}

// HasGame reports whether the registration includes game.
func (r *GameRegistration) HasGame(game string) bool {
	for _, g := range r.Games {
		if g == game {
			return true
		}
	}
	return false
}

// PicnicGames is the canonical game order used for coordinator assignment.
var PicnicGames = []string{
	"Checkers",
	"Card games",
	"Ludo",
	"Monopoly",
	"Scrabble",
	"Chess",
	"Jenga",
	"Snake and ladder",
	"Ayo",
}
