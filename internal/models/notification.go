package models

import "time"

// Notification is an admin-facing event such as a new registration.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
