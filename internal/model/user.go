package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member of one restaurant
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Email        string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password     string         `json:"-" gorm:"type:varchar(255)"`
	Name         string         `json:"name" gorm:"type:varchar(100)"`
	RestaurantID string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	Role         string         `json:"role" gorm:"type:varchar(50);not null;default:'staff'"` // 'owner', 'manager', 'staff'
	Active       bool           `json:"active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
