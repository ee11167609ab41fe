package models

import "time"

// Dealer is an outlet allowed to register sales.
type Dealer struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Status               string    `gorm:"size:32" json:"status"`
	ExOrMulti            string    `gorm:"size:16" json:"exOrMulti"`
	HondaExclusiveOutlet string    `gorm:"size:16" json:"hondaExclusiveOutlet"`
	PIC                  string    `gorm:"column:pic;size:128" json:"pic"`
	DlrName              string    `gorm:"size:128;not null;uniqueIndex:idx_dealer_location" json:"dlrName"`
	Region               string    `gorm:"size:64" json:"region"`
	State                string    `gorm:"size:64;uniqueIndex:idx_dealer_location" json:"state"`
	Town                 string    `gorm:"size:64;uniqueIndex:idx_dealer_location" json:"town"`
	Address              string    `gorm:"type:text" json:"address"`
	Phone1               string    `gorm:"size:11" json:"phone1"`
	Phone2               string    `gorm:"size:11" json:"phone2,omitempty"`
	OwnerOrContactPerson string    `gorm:"size:128" json:"ownerOrContactPerson"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
