package models

import "time"

// Admin roles.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
)

// Admin is a back-office user. Password holds a bcrypt hash.
type Admin struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName  string    `gorm:"size:128;not null" json:"fullName"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:72;not null" json:"-"`
	Role      string    `gorm:"size:16;default:admin" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
