package model

import (
	"time"

	"gorm.io/gorm"
)

// Category groups products inside a section
type Category struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	SectionID    *uint          `json:"section_id,omitempty" gorm:"index"`
	Name         string         `json:"name" gorm:"type:varchar(100);not null"`
	PosID        string         `json:"pos_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
