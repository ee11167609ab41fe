package models

import "time"

// Customer is a registered motorcycle purchase, keyed by engine number.
type Customer struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EngineNumber string    `gorm:"size:64;not null;uniqueIndex" json:"engineNumber"`
	Title        string    `gorm:"size:16" json:"title"`
	BuyerName    string    `gorm:"size:128;not null" json:"buyerName"`
	Phone        string    `gorm:"size:11" json:"phone"`
	State        string    `gorm:"size:64;index" json:"state"`
	Dealer       string    `gorm:"size:128;index" json:"dealer"`
	PurchaseDate string    `gorm:"size:10" json:"purchaseDate"`
	Usage        string    `gorm:"size:32" json:"usage"`
	EndUser      string    `gorm:"size:128" json:"endUser,omitempty"`
	EndUserPhone string    `gorm:"size:11" json:"endUserPhone,omitempty"`
	Model        string    `gorm:"size:64;not null" json:"model"`
	Variant      string    `gorm:"size:64" json:"variant,omitempty"`
	Color        string    `gorm:"size:32" json:"color"`
	RimType      string    `gorm:"size:32" json:"rimType,omitempty"`
	StartType    string    `gorm:"size:32" json:"startType,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
