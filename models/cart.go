package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to exactly one owner: a signed-in user (UserID) or a guest
// session (SessionID). Both columns are unique and nullable.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	SessionID *string    `gorm:"type:varchar(128);uniqueIndex" json:"session_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem is unique per (cart, variant). Version is bumped on every
// quantity/price write and used for conditional updates.
type CartItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CartID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant" json:"variant_id"`
	Variant    *ProductVariant `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	PriceAtAdd decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_at_add"`
	Version    int             `gorm:"not null;default:1" json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}
