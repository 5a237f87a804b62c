package model

import (
	"time"
)

// Roles assigned to users. Authorization is derived from the stored
// role at request time, not from the token claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a volunteer account stored in the database.
type User struct {
	ID           uint              `json:"id" gorm:"primaryKey"`
	Email        string            `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	PasswordHash string            `json:"-" gorm:"type:varchar(255)"`
	FirstName    string            `json:"firstName" gorm:"type:varchar(100)"`
	LastName     string            `json:"lastName" gorm:"type:varchar(100)"`
	Address      string            `json:"address" gorm:"type:varchar(255)"`
	Birthday     string            `json:"birthday" gorm:"type:varchar(32)"`
	Approved     bool              `json:"approved" gorm:"default:false"`
	Role         string            `json:"role" gorm:"type:varchar(16);default:user"`
	Assignments  []ShiftAssignment `json:"-" gorm:"foreignKey:UserID"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ShiftIDs returns the ids of shifts the user is signed up for, in
// sign-up order.
func (u *User) ShiftIDs() []string {
	ids := make([]string, 0, len(u.Assignments))
	for _, a := range u.Assignments {
		ids = append(ids, a.ShiftID)
	}
	return ids
}
