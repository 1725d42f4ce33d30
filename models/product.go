package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "DRAFT"
	ProductStatusPublished ProductStatus = "PUBLISHED"
	ProductStatusArchived  ProductStatus = "ARCHIVED"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPublished, ProductStatusArchived:
		return true
	}
	return false
}

type Product struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	Name         string           `gorm:"not null;index" json:"name"`
	Slug         string           `gorm:"uniqueIndex;not null" json:"slug"`
	Description  string           `json:"description"`
	CategoryID   *uuid.UUID       `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category     *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	DefaultImage string           `json:"default_image"`
	Status       ProductStatus    `gorm:"type:varchar(16);default:DRAFT;index" json:"status"`
	Variants     []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProductStatusDraft
	}
	return nil
}

func (p *Product) IsPublished() bool {
	return p.Status == ProductStatusPublished
}

// ProductVariant is the purchasable unit of a product. Carts reference variants,
// never products directly.
type ProductVariant struct {
	ID            uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	ProductID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"product_id"`
	Product       *Product            `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	SKU           string              `gorm:"index" json:"sku"`
	Price         decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	SalePrice     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"sale_price"`
	StockQuantity int                 `gorm:"default:0" json:"stock_quantity"`
	Barcode       string              `json:"barcode"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// EffectivePrice returns the sale price when one is set, otherwise the list price.
func (v *ProductVariant) EffectivePrice() decimal.Decimal {
	if v.SalePrice.Valid {
		return v.SalePrice.Decimal
	}
	return v.Price
}
