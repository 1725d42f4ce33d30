package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront-backend/cache"
	"storefront-backend/cart"
	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Carts *cart.Service
	Cache cache.Cache
	Log   *slog.Logger
}

func NewAuthHandler(db *gorm.DB, carts *cart.Service, c cache.Cache, log *slog.Logger) *AuthHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &AuthHandler{DB: db, Carts: carts, Cache: c, Log: logger.OrDefault(log).With("component", "auth_handler")}
}

func issueTokens(user *models.User) (gin.H, error) {
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
	}, nil
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dtos.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		utils.RespondError(c, http.StatusConflict, "Email already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.ErrorContext(ctx, "hash password", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Email:    email,
		Password: string(hashed),
		Name:     req.Name,
		Role:     models.RoleCustomer,
	}
	err = h.DB.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondError(c, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "create user", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	body, err := issueTokens(&user)
	if err != nil {
		h.Log.ErrorContext(ctx, "issue tokens", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	invalidate(ctx, h.Cache, h.Log, UsersKey)
	h.Log.InfoContext(ctx, "user registered", "user_id", user.ID)
	utils.RespondSuccess(c, http.StatusCreated, "Registration successful", body)
}

// Login authenticates the user. A guest cart named by X-Session-Id is merged
// into the user's cart; a failed merge is logged and does not fail the login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dtos.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	var user models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.IsBlocked {
		utils.RespondError(c, http.StatusForbidden, "Your account has been blocked. Please contact support.")
		return
	}

	body, err := issueTokens(&user)
	if err != nil {
		h.Log.ErrorContext(ctx, "issue tokens", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if sessionID := strings.TrimSpace(c.GetHeader(SessionHeader)); sessionID != "" && h.Carts != nil {
		merged, err := h.Carts.ResolveCart(ctx, cart.Identity{UserID: &user.ID, SessionID: sessionID})
		if err != nil {
			h.Log.WarnContext(ctx, "guest cart merge on login failed", "user_id", user.ID, "error", err)
		} else {
			body["cart_id"] = merged.ID
		}
	}

	utils.RespondSuccess(c, http.StatusOK, "Login successful", body)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dtos.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	claims, err := utils.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}
	if user.IsBlocked {
		utils.RespondError(c, http.StatusForbidden, "Your account has been blocked")
		return
	}

	body, err := issueTokens(&user)
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "issue tokens", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Token refreshed", body)
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ?", userID).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, "User not found")
		return nil, false
	}
	return &user, true
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Profile retrieved successfully", user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req dtos.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "update profile", "user_id", user.ID, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	invalidate(c.Request.Context(), h.Cache, h.Log, UsersKey)
	utils.RespondSuccess(c, http.StatusOK, "Profile updated successfully", user)
}
