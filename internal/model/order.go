package model

import (
	"time"

	"gorm.io/gorm"
)

// Order lifecycle statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusSubmitted  = "submitted"
	OrderStatusDispatched = "dispatched"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is a shopping cart submitted by staff and dispatched to a supplier
type Order struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID string         `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	SupplierID   *uint          `json:"supplier_id,omitempty" gorm:"index"`
	Status       string         `json:"status" gorm:"type:varchar(20);index;default:'pending'"`
	Comment      string         `json:"comment" gorm:"type:text"`
	CreatedBy    uint           `json:"created_by" gorm:"index"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is one line of an order. Product name, unit and price are copied
// at submission time so later catalog edits do not rewrite order history.
type OrderItem struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	OrderID      uint      `json:"order_id" gorm:"index;not null"`
	RestaurantID string    `json:"restaurant_id" gorm:"type:varchar(64);index;not null"`
	ProductID    uint      `json:"product_id" gorm:"index;not null"`
	Name         string    `json:"name" gorm:"type:varchar(150)"`
	Unit         string    `json:"unit" gorm:"type:varchar(20)"`
	Quantity     float64   `json:"quantity" gorm:"not null"`
	Price        float64   `json:"price" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
