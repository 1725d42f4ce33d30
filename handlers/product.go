package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront-backend/cache"
	"storefront-backend/dtos"
	"storefront-backend/firebase"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductHandler struct {
	DB      *gorm.DB
	Cache   cache.Cache
	Storage firebase.StorageClient
	TTL     time.Duration
	Log     *slog.Logger
}

func NewProductHandler(db *gorm.DB, c cache.Cache, storage firebase.StorageClient, ttl time.Duration, log *slog.Logger) *ProductHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &ProductHandler{
		DB:      db,
		Cache:   c,
		Storage: storage,
		TTL:     ttl,
		Log:     logger.OrDefault(log).With("component", "product_handler"),
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	var q dtos.ProductListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	q.Normalize()

	status := q.Status
	if status == "" {
		status = string(models.ProductStatusPublished)
	}

	query := h.DB.WithContext(c.Request.Context()).Model(&models.Product{}).Where("status = ?", status)
	if q.CategoryID != "" {
		query = query.Where("category_id = ?", q.CategoryID)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "count products", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	var products []models.Product
	err := query.Preload("Category").Preload("Variants").
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.SortBy}, Desc: q.SortOrder == "desc"}).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&products).Error
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "list products", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	utils.RespondSuccess(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products": products,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

func (h *ProductHandler) loadProduct(ctx context.Context, where string, arg any) (models.Product, error) {
	var product models.Product
	err := h.DB.WithContext(ctx).Preload("Category").Preload("Variants").Where(where, arg).First(&product).Error
	return product, err
}

func (h *ProductHandler) respondProduct(c *gin.Context, product models.Product, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "load product", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch product")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Product retrieved successfully", product)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	ctx := c.Request.Context()
	product, err := readThrough(ctx, h.Cache, h.Log, ProductIDKey(id), h.TTL, func() (models.Product, error) {
		return h.loadProduct(ctx, "id = ?", id)
	})
	h.respondProduct(c, product, err)
}

func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	s := c.Param("slug")
	ctx := c.Request.Context()
	product, err := readThrough(ctx, h.Cache, h.Log, ProductSlugKey(s), h.TTL, func() (models.Product, error) {
		return h.loadProduct(ctx, "slug = ?", s)
	})
	h.respondProduct(c, product, err)
}

func (h *ProductHandler) invalidateProduct(ctx context.Context, p *models.Product, extraSlugs ...string) {
	keys := []string{ProductIDKey(p.ID), ProductSlugKey(p.Slug)}
	for _, s := range extraSlugs {
		if s != "" && s != p.Slug {
			keys = append(keys, ProductSlugKey(s))
		}
	}
	invalidate(ctx, h.Cache, h.Log, keys...)
}

func variantFromInput(in dtos.VariantInput) (models.ProductVariant, error) {
	if !in.Price.IsPositive() {
		return models.ProductVariant{}, errors.New("price must be greater than 0")
	}
	v := models.ProductVariant{
		SKU:           in.SKU,
		Barcode:       in.Barcode,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
	}
	if in.SalePrice != nil {
		if in.SalePrice.IsNegative() {
			return models.ProductVariant{}, errors.New("sale_price must not be negative")
		}
		v.SalePrice = decimal.NewNullDecimal(*in.SalePrice)
	}
	return v, nil
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req dtos.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product := models.Product{
		Name:         strings.TrimSpace(req.Name),
		Slug:         req.Slug,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		DefaultImage: req.DefaultImage,
		Status:       models.ProductStatus(req.Status),
	}
	if product.Slug == "" {
		product.Slug = slug.Make(product.Name)
	} else {
		product.Slug = slug.Make(product.Slug)
	}
	if product.Slug == "" {
		utils.RespondError(c, http.StatusBadRequest, "name must contain letters or digits")
		return
	}

	for _, in := range req.Variants {
		v, err := variantFromInput(in)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		product.Variants = append(product.Variants, v)
	}

	err := h.DB.WithContext(c.Request.Context()).Create(&product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondError(c, http.StatusConflict, "A product with this slug already exists")
		return
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "create product", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.Log.InfoContext(c.Request.Context(), "product created", "product_id", product.ID, "slug", product.Slug)
	utils.RespondSuccess(c, http.StatusCreated, "Product created successfully", product)
}

// findProduct loads the product named by :id or writes the error response.
func (h *ProductHandler) findProduct(c *gin.Context) (*models.Product, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid product ID")
		return nil, false
	}

	var product models.Product
	err = h.DB.WithContext(c.Request.Context()).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "Product not found")
		return nil, false
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "load product", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch product")
		return nil, false
	}
	return &product, true
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req dtos.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, ok := h.findProduct(c)
	if !ok {
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = models.ProductStatus(*req.Status)
	}
	if req.CategoryID != nil {
		updates["category_id"] = req.CategoryID
	}
	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, "No fields to update")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(product).Updates(updates).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "update product", "product_id", product.ID, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update product")
		return
	}

	h.invalidateProduct(c.Request.Context(), product)
	updated, err := h.loadProduct(c.Request.Context(), "id = ?", product.ID)
	if err != nil {
		h.respondProduct(c, updated, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Product updated successfully", updated)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	product, ok := h.findProduct(c)
	if !ok {
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Delete(product).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "delete product", "product_id", product.ID, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	h.invalidateProduct(c.Request.Context(), product)
	utils.RespondSuccess(c, http.StatusOK, "Product deleted successfully", nil)
}

func (h *ProductHandler) UpdateVariant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid variant ID")
		return
	}

	var req dtos.UpdateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	var variant models.ProductVariant
	err = h.DB.WithContext(ctx).Preload("Product").Where("id = ?", id).First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "Variant not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "load variant", "variant_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch variant")
		return
	}

	updates := map[string]any{}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			utils.RespondError(c, http.StatusBadRequest, "price must be greater than 0")
			return
		}
		updates["price"] = *req.Price
	}
	switch {
	case req.ClearSalePrice:
		updates["sale_price"] = decimal.NullDecimal{}
	case req.SalePrice != nil:
		if req.SalePrice.IsNegative() {
			utils.RespondError(c, http.StatusBadRequest, "sale_price must not be negative")
			return
		}
		updates["sale_price"] = decimal.NewNullDecimal(*req.SalePrice)
	}
	if req.StockQuantity != nil {
		updates["stock_quantity"] = *req.StockQuantity
	}
	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, "No fields to update")
		return
	}

	if err := h.DB.WithContext(ctx).Model(&variant).Updates(updates).Error; err != nil {
		h.Log.ErrorContext(ctx, "update variant", "variant_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update variant")
		return
	}

	if variant.Product != nil {
		h.invalidateProduct(ctx, variant.Product)
	}

	var updated models.ProductVariant
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&updated).Error; err != nil {
		h.Log.ErrorContext(ctx, "reload variant", "variant_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch variant")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Variant updated successfully", updated)
}

// UploadImage stores a product image and makes it the default image. It
// accepts a multipart "image" file or a JSON body with an external image_url.
func (h *ProductHandler) UploadImage(c *gin.Context) {
	if h.Storage == nil {
		utils.RespondError(c, http.StatusServiceUnavailable, "Image storage is not configured")
		return
	}

	product, ok := h.findProduct(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	productID := product.ID.String()

	var (
		url string
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("image")
		if ferr != nil {
			utils.RespondError(c, http.StatusBadRequest, "image file is required")
			return
		}
		if verr := utils.ValidateFileUpload(fh); verr != nil {
			utils.RespondError(c, http.StatusBadRequest, verr.Error())
			return
		}
		file, oerr := fh.Open()
		if oerr != nil {
			utils.RespondError(c, http.StatusBadRequest, "Could not read image file")
			return
		}
		defer file.Close()
		url, err = h.Storage.UploadProductImage(ctx, productID, file, fh.Filename, fh.Header.Get("Content-Type"))
	} else {
		var req dtos.ImportImageRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			bindError(c, berr)
			return
		}
		url, err = h.Storage.ImportProductImage(ctx, productID, req.ImageURL)
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "store product image", "product_id", productID, "error", err)
		utils.RespondError(c, http.StatusBadGateway, "Failed to store image")
		return
	}

	previous := product.DefaultImage
	if err := h.DB.WithContext(ctx).Model(product).Update("default_image", url).Error; err != nil {
		h.Log.ErrorContext(ctx, "save default image", "product_id", productID, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update product image")
		return
	}

	if path, ours := firebase.ObjectPath(h.Storage.Bucket(), previous); ours {
		if err := h.Storage.DeleteFile(ctx, path); err != nil {
			h.Log.WarnContext(ctx, "delete previous image", "path", path, "error", err)
		}
	}

	h.invalidateProduct(ctx, product)
	utils.RespondSuccess(c, http.StatusOK, "Product image updated", gin.H{"default_image": url})
}
