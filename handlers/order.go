package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"storefront-backend/cache"
	"storefront-backend/cart"
	"storefront-backend/dtos"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderHandler struct {
	DB    *gorm.DB
	Carts *cart.Service
	Cache cache.Cache
	Log   *slog.Logger
}

func NewOrderHandler(db *gorm.DB, carts *cart.Service, c cache.Cache, log *slog.Logger) *OrderHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &OrderHandler{DB: db, Carts: carts, Cache: c, Log: logger.OrDefault(log).With("component", "order_handler")}
}

// checkoutError aborts the order transaction with a client-facing message.
type checkoutError struct {
	msg string
}

func (e *checkoutError) Error() string { return e.msg }

// CreateOrder turns the caller's cart into an order. Stock is decremented
// under row locks and each line is charged the variant's current effective
// price. The cart is emptied once the order is committed.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dtos.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	identity := cart.Identity{UserID: &userID, SessionID: c.GetHeader(SessionHeader)}
	resolved, err := h.Carts.ResolveCart(ctx, identity)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	detail, err := h.Carts.GetCartByID(ctx, resolved.ID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if len(detail.Items) == 0 {
		utils.RespondError(c, http.StatusBadRequest, "Cart is empty")
		return
	}
	if detail.HasErrors() {
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.Envelope{
			Result:  utils.ResultError,
			Message: "Some items in your cart need attention before checkout",
			Data:    detail.Validation,
		})
		return
	}

	order := models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	touched := map[uuid.UUID]struct{}{}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subtotal := decimal.Zero
		for _, item := range detail.Items {
			var variant models.ProductVariant
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("Product").
				Where("id = ?", item.VariantID).
				First(&variant).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &checkoutError{msg: "A product in your cart is no longer available"}
			}
			if err != nil {
				return err
			}
			if variant.Product == nil || !variant.Product.IsPublished() {
				return &checkoutError{msg: "A product in your cart is no longer available"}
			}
			if variant.StockQuantity < item.Quantity {
				return &checkoutError{msg: fmt.Sprintf("Insufficient stock for %s", variant.Product.Name)}
			}

			if err := tx.Model(&variant).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity)).Error; err != nil {
				return err
			}

			price := variant.EffectivePrice()
			subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			order.Items = append(order.Items, models.OrderItem{
				VariantID:   variant.ID,
				ProductName: variant.Product.Name,
				SKU:         variant.SKU,
				Quantity:    item.Quantity,
				UnitPrice:   price,
			})
			touched[variant.ProductID] = struct{}{}
		}
		order.Subtotal = subtotal
		return tx.Create(&order).Error
	})

	var coErr *checkoutError
	if errors.As(err, &coErr) {
		utils.RespondError(c, http.StatusBadRequest, coErr.msg)
		return
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "create order", "user_id", userID, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to create order")
		return
	}

	h.invalidateProducts(ctx, touched)

	// the order stands even when the cart cannot be emptied
	if err := h.Carts.ClearCartAfterOrder(ctx, cart.Identity{UserID: &userID}); err != nil {
		h.Log.WarnContext(ctx, "clear cart after order", "order_id", order.ID, "error", err)
	}

	h.Log.InfoContext(ctx, "order created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", userID)
	utils.RespondSuccess(c, http.StatusCreated, "Order placed successfully", order)
}

func (h *OrderHandler) invalidateProducts(ctx context.Context, productIDs map[uuid.UUID]struct{}) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs)*2)
	for id := range productIDs {
		keys = append(keys, ProductIDKey(id))
	}

	var slugs []string
	ids := make([]uuid.UUID, 0, len(productIDs))
	for id := range productIDs {
		ids = append(ids, id)
	}
	if err := h.DB.WithContext(ctx).Model(&models.Product{}).Where("id IN ?", ids).Pluck("slug", &slugs).Error; err != nil {
		h.Log.WarnContext(ctx, "load product slugs for invalidation", "error", err)
	}
	for _, s := range slugs {
		keys = append(keys, ProductSlugKey(s))
	}
	invalidate(ctx, h.Cache, h.Log, keys...)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var orders []models.Order
	if err := h.DB.WithContext(c.Request.Context()).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		h.Log.ErrorContext(c.Request.Context(), "list orders", "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Orders retrieved successfully", orders)
}

// GetOrder returns one order. Customers only see their own orders.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	query := h.DB.WithContext(c.Request.Context()).Preload("Items").Where("id = ?", id)
	if role, _ := c.Get(middleware.ContextUserRole); role != models.RoleAdmin {
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	err = query.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		h.Log.ErrorContext(c.Request.Context(), "load order", "order_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to fetch order")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Order retrieved successfully", order)
}

// UpdateOrderStatus moves an order along the status state machine. Cancelling
// puts the ordered quantities back in stock.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req dtos.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	next := models.OrderStatus(req.Status)
	ctx := c.Request.Context()

	var order models.Order
	touched := map[uuid.UUID]struct{}{}
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
			return err
		}
		if !models.IsValidTransition(order.Status, next) {
			return &checkoutError{msg: fmt.Sprintf("Invalid status transition from '%s' to '%s'", order.Status, next)}
		}
		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next

		if next != models.OrderStatusCancelled {
			return nil
		}
		for _, item := range order.Items {
			var variant models.ProductVariant
			if err := tx.Where("id = ?", item.VariantID).First(&variant).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			if err := tx.Model(&variant).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
				return err
			}
			touched[variant.ProductID] = struct{}{}
		}
		return nil
	})

	var coErr *checkoutError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, "Order not found")
		return
	case errors.As(err, &coErr):
		utils.RespondError(c, http.StatusBadRequest, coErr.msg)
		return
	case err != nil:
		h.Log.ErrorContext(ctx, "update order status", "order_id", id, "error", err)
		utils.RespondError(c, http.StatusInternalServerError, "Failed to update order status")
		return
	}

	h.invalidateProducts(ctx, touched)
	h.Log.InfoContext(ctx, "order status updated", "order_id", id, "status", next)
	utils.RespondSuccess(c, http.StatusOK, "Order status updated", order)
}
