package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"storefront-backend/cache"
	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserHandler serves the admin user directory.
type UserHandler struct {
	DB    *gorm.DB
	Cache cache.Cache
	TTL   time.Duration
	Log   *slog.Logger
}

func NewUserHandler(db *gorm.DB, c cache.Cache, ttl time.Duration, log *slog.Logger) *UserHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &UserHandler{DB: db, Cache: c, TTL: ttl, Log: logger.OrDefault(log).With("component", "user_handler")}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := readThrough(ctx, h.Cache, h.Log, UsersKey, h.TTL, func() ([]models.User, error) {
		var users []models.User
		err := h.DB.WithContext(ctx).Order("created_at DESC").Find(&users).Error
		return users, err
	})
	if err != nil {
		h.Log.ErrorContext(ctx, "list users", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Users retrieved successfully", users)
}

func (h *UserHandler) SetBlocked(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req dtos.SetUserBlockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if self, ok := middleware.CurrentUserID(c); ok && self == id && req.Blocked {
		utils.RespondError(c, http.StatusBadRequest, "You cannot block your own account")
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err = h.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "load user", "user_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if err := h.DB.WithContext(ctx).Model(&user).Update("is_blocked", req.Blocked).Error; err != nil {
		h.Log.ErrorContext(ctx, "update user", "user_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update user")
		return
	}

	invalidate(ctx, h.Cache, h.Log, UsersKey)
	h.Log.InfoContext(ctx, "user block state changed", "user_id", id, "blocked", req.Blocked)
	utils.RespondSuccess(c, http.StatusOK, "User updated successfully", user)
}
