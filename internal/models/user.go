// Package models defines domain models for the congregation backend.
package models

import (
	"strings"
	"time"
)

// User represents a congregation member account.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FirstName    string    `gorm:"size:100;not null" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	Email        string    `gorm:"size:255;index" json:"email"`
	Phone        string    `gorm:"size:50" json:"phone"`
	Role         string    `gorm:"size:50;not null;index" json:"role"` // see Role* constants
	RewardPoints int       `gorm:"not null;default:0" json:"reward_points"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// FullName returns the display name of the user.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Attendance represents a user's presence at a service on a given date.
type Attendance struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_attendance_user_date" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ServiceDate time.Time `gorm:"not null;uniqueIndex:idx_attendance_user_date" json:"service_date"`
	Usher       bool      `gorm:"not null" json:"usher"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Attendance model.
func (Attendance) TableName() string {
	return "attendances"
}

// Role constants, lowest to highest.
const (
	RoleFirstTimer = "first_timer"
	RoleMember     = "member"
	RoleWorker     = "worker"
	RoleLeader     = "leader"
	RolePastor     = "pastor"
)

var roleRanks = map[string]int{
	RoleFirstTimer: 0,
	RoleMember:     1,
	RoleWorker:     2,
	RoleLeader:     3,
	RolePastor:     4,
}

// RoleRank returns the position of a role in the hierarchy, or -1 for unknown roles.
func RoleRank(role string) int {
	rank, ok := roleRanks[role]
	if !ok {
		return -1
	}
	return rank
}

// Roles returns every role, lowest first.
func Roles() []string {
	return []string{RoleFirstTimer, RoleMember, RoleWorker, RoleLeader, RolePastor}
}

// IsValidRole reports whether role is part of the hierarchy.
func IsValidRole(role string) bool {
	return RoleRank(role) >= 0
}
