package model

import (
	"time"

	"gorm.io/gorm"
)

// Section is a department of the restaurant (kitchen, bar, storage)
type Section struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	Name         string         `json:"name" gorm:"type:varchar(100);not null"`
	Emoji        string         `json:"emoji" gorm:"type:varchar(10)"`
	PosID        string         `json:"pos_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
