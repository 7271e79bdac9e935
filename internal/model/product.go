package model

import (
	"time"

	"gorm.io/gorm"
)

// Product is one inventory item staff can put on an order
type Product struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	CategoryID   *uint          `json:"category_id,omitempty" gorm:"index"`
	SectionID    *uint          `json:"section_id,omitempty" gorm:"index"`
	SupplierID   *uint          `json:"supplier_id,omitempty" gorm:"index"`
	Name         string         `json:"name" gorm:"type:varchar(150);index;not null"`
	Unit         string         `json:"unit" gorm:"type:varchar(20);default:'pcs'"`
	Quantity     float64        `json:"quantity" gorm:"default:0"`
	MinQuantity  float64        `json:"min_quantity" gorm:"default:0"`
	Price        float64        `json:"price" gorm:"default:0"`
	PosID        string         `json:"pos_id,omitempty" gorm:"type:varchar(64);index"` // ingredient ID in the external POS
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
