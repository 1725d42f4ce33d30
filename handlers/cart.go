package handlers

import (
	"log/slog"
	"net/http"

	"storefront-backend/cart"
	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHeader carries the guest session id for anonymous shoppers.
const SessionHeader = "X-Session-Id"

type CartHandler struct {
	Carts *cart.Service
	Log   *slog.Logger
}

func NewCartHandler(carts *cart.Service, log *slog.Logger) *CartHandler {
	return &CartHandler{Carts: carts, Log: logger.OrDefault(log).With("component", "cart_handler")}
}

func identityFrom(c *gin.Context) cart.Identity {
	id := cart.Identity{SessionID: c.GetHeader(SessionHeader)}
	if userID, ok := middleware.CurrentUserID(c); ok {
		id.UserID = &userID
	}
	return id
}

// callerCart resolves the caller's cart or writes the error response.
func (h *CartHandler) callerCart(c *gin.Context) (uuid.UUID, bool) {
	resolved, err := h.Carts.ResolveCart(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, h.Log, err)
		return uuid.Nil, false
	}
	return resolved.ID, true
}

// ownedItem parses :itemId and checks that the item sits in the caller's cart.
// Items in other carts are reported as missing.
func (h *CartHandler) ownedItem(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid item ID")
		return uuid.Nil, uuid.Nil, false
	}

	cartID, ok := h.callerCart(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	item, err := h.Carts.FindItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, h.Log, err)
		return uuid.Nil, uuid.Nil, false
	}
	if item.CartID != cartID {
		utils.RespondError(c, http.StatusNotFound, "Cart item not found")
		return uuid.Nil, uuid.Nil, false
	}
	return cartID, itemID, true
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cartID, ok := h.callerCart(c)
	if !ok {
		return
	}

	detail, err := h.Carts.GetCartByID(c.Request.Context(), cartID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Cart retrieved successfully", detail)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dtos.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cartID, ok := h.callerCart(c)
	if !ok {
		return
	}

	item, err := h.Carts.AddItemToCart(c.Request.Context(), cartID, req.VariantID, req.Quantity)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Item added to cart", item)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req dtos.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	_, itemID, ok := h.ownedItem(c)
	if !ok {
		return
	}

	item, err := h.Carts.UpdateCartItem(c.Request.Context(), itemID, req.Quantity)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Cart item updated", item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	_, itemID, ok := h.ownedItem(c)
	if !ok {
		return
	}

	if err := h.Carts.RemoveCartItem(c.Request.Context(), itemID); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Item removed from cart", nil)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	cartID, ok := h.callerCart(c)
	if !ok {
		return
	}

	if err := h.Carts.ClearCart(c.Request.Context(), cartID); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Cart cleared", nil)
}
