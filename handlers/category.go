package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type CategoryHandler struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func NewCategoryHandler(db *gorm.DB, log *slog.Logger) *CategoryHandler {
	return &CategoryHandler{DB: db, Log: logger.OrDefault(log).With("component", "category_handler")}
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	var categories []models.Category
	if err := h.DB.WithContext(c.Request.Context()).Order("name").Find(&categories).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "list categories", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Categories retrieved successfully", categories)
}

func (h *CategoryHandler) findCategory(c *gin.Context) (*models.Category, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid category ID")
		return nil, false
	}

	var category models.Category
	err = h.DB.WithContext(c.Request.Context()).Where("id = ?", id).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "Category not found")
		return nil, false
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "load category", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch category")
		return nil, false
	}
	return &category, true
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Category retrieved successfully", category)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req dtos.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category := models.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug.Make(req.Name),
		Description: req.Description,
	}
	err := h.DB.WithContext(c.Request.Context()).Create(&category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondError(c, http.StatusConflict, "Category already exists")
		return
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "create category", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to create category")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Category created successfully", category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req dtos.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	category.Name = strings.TrimSpace(req.Name)
	category.Slug = slug.Make(req.Name)
	category.Description = req.Description

	err := h.DB.WithContext(c.Request.Context()).Save(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondError(c, http.StatusConflict, "Category already exists")
		return
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "update category", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update category")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Category updated successfully", category)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	var productCount int64
	if err := h.DB.WithContext(c.Request.Context()).Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&productCount).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "count category products", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to check category dependencies")
		return
	}
	if productCount > 0 {
		utils.RespondError(c, http.StatusBadRequest, "Cannot delete category with associated products")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Delete(category).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "delete category", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to delete category")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Category deleted successfully", nil)
}
