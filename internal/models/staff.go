package models

import "time"

// Role claim values, highest privilege first.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleStaff   = "staff"
)

// Staff - The person operating the till. Role flags are independent.
type Staff struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"` // Never return this in JSON
	Email        string    `gorm:"size:254" json:"email"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	IsCashier    bool      `gorm:"not null;default:false" json:"is_cashier"`
	IsManager    bool      `gorm:"not null;default:false" json:"is_manager"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	DateJoined   time.Time `gorm:"autoCreateTime" json:"date_joined"`
}

// Role picks the token role: first true flag of admin, manager, cashier.
func (s *Staff) Role() string {
	switch {
	case s.IsAdmin:
		return RoleAdmin
	case s.IsManager:
		return RoleManager
	case s.IsCashier:
		return RoleCashier
	default:
		return RoleStaff
	}
}
