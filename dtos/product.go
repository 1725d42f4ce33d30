package dtos

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductListQuery is bound from the query string of the product listing.
type ProductListQuery struct {
	Page       int    `form:"page" binding:"omitempty,gte=1"`
	Limit      int    `form:"limit" binding:"omitempty,gte=1,lte=100"`
	Status     string `form:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	Search     string `form:"search"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=name created_at updated_at"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// Normalize fills paging and ordering defaults.
func (q *ProductListQuery) Normalize() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

type VariantInput struct {
	SKU           string           `json:"sku"`
	Barcode       string           `json:"barcode"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	StockQuantity int              `json:"stock_quantity" binding:"gte=0"`
}

type CreateProductRequest struct {
	Name         string         `json:"name" binding:"required,max=255"`
	Slug         string         `json:"slug"`
	Description  string         `json:"description"`
	CategoryID   *uuid.UUID     `json:"category_id"`
	DefaultImage string         `json:"default_image"`
	Status       string         `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Variants     []VariantInput `json:"variants" binding:"required,min=1,dive"`
}

// UpdateProductRequest only touches the fields that are present.
type UpdateProductRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	CategoryID  *uuid.UUID `json:"category_id"`
}

type UpdateVariantRequest struct {
	Price          *decimal.Decimal `json:"price"`
	SalePrice      *decimal.Decimal `json:"sale_price"`
	ClearSalePrice bool             `json:"clear_sale_price"`
	StockQuantity  *int             `json:"stock_quantity" binding:"omitempty,gte=0"`
}

// ImportImageRequest copies an externally hosted image into object storage.
type ImportImageRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}
