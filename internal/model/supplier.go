package model

import (
	"time"

	"gorm.io/gorm"
)

// Supplier represents a supplier orders get dispatched to
type Supplier struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	RestaurantID  string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	Name          string         `json:"name" gorm:"type:varchar(100);not null"`
	ContactPerson string         `json:"contact_person" gorm:"type:varchar(100)"`
	Phone         string         `json:"phone" gorm:"type:varchar(20)"`
	Email         string         `json:"email" gorm:"type:varchar(100)"`
	Address       string         `json:"address" gorm:"type:text"`
	Notes         string         `json:"notes" gorm:"type:text"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	PosID         string         `json:"pos_id,omitempty" gorm:"type:varchar(64);index"` // ID in the external POS system
	CreatedBy     uint           `json:"created_by" gorm:"index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
