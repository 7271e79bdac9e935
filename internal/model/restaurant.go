package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Restaurant is the tenant: one organization whose staff share an inventory.
// Every business row carries its ID, and the row-level-security policies keep
// rows invisible to sessions scoped to a different restaurant.
//
// Restaurants are never hard-deleted, only deactivated.
type Restaurant struct {
	ID         string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null"`
	Active     bool      `json:"active" gorm:"default:true"`
	PosToken   string    `json:"-" gorm:"type:varchar(255)"`
	PosBaseURL string    `json:"-" gorm:"type:varchar(255)"`
	Currency   string    `json:"currency" gorm:"type:varchar(10);default:'KZT'"`
	Locale     string    `json:"locale" gorm:"type:varchar(10);default:'ru'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns an opaque ID when the provisioning flow did not
func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
