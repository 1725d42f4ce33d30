package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var orderBody = map[string]string{"delivery_address": "1 Main St", "payment_method": "card"}

func TestCreateOrderFromCart(t *testing.T) {
	env := newTestEnv(t)
	user, token := seedTestUser(t, env.db, "buyer@test.com", models.RoleCustomer)
	_, tea := seedProduct(t, env.db, "tea", models.ProductStatusPublished, "4.00", 10)
	_, cup := seedProduct(t, env.db, "cup", models.ProductStatusPublished, "6.00", 3)
	addItem(t, env, tea.ID, 2, bearer(token))
	addItem(t, env, cup.ID, 1, bearer(token))

	// sale started after the items were added
	env.db.Model(&models.ProductVariant{}).Where("id = ?", cup.ID).Update("sale_price", decimal.RequireFromString("5.95"))

	w := env.do(jsonRequest("POST", "/api/v1/orders", orderBody, bearer(token)))
	expectStatus(t, w, http.StatusCreated)

	data := parseData(t, w)
	if got := decimalField(t, data, "subtotal"); !got.Equal(decimal.RequireFromString("13.95")) {
		t.Errorf("expected subtotal 13.95 at current prices, got %s", got)
	}
	if items := data["items"].([]any); len(items) != 2 {
		t.Errorf("expected 2 order items, got %d", len(items))
	}

	var stock models.ProductVariant
	env.db.First(&stock, "id = ?", tea.ID)
	if stock.StockQuantity != 8 {
		t.Errorf("expected tea stock 8, got %d", stock.StockQuantity)
	}
	env.db.First(&stock, "id = ?", cup.ID)
	if stock.StockQuantity != 2 {
		t.Errorf("expected cup stock 2, got %d", stock.StockQuantity)
	}

	var remaining int64
	env.db.Model(&models.CartItem{}).Count(&remaining)
	if remaining != 0 {
		t.Errorf("expected the cart to be emptied, %d items left", remaining)
	}
	var c models.Cart
	if err := env.db.First(&c, "user_id = ?", user.ID).Error; err != nil {
		t.Errorf("expected the cart row to be kept: %v", err)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	_, token := seedTestUser(t, env.db, "empty@test.com", models.RoleCustomer)

	w := env.do(jsonRequest("POST", "/api/v1/orders", orderBody, bearer(token)))
	expectStatus(t, w, http.StatusBadRequest)
	if msg := parseEnvelope(t, w).Message; msg != "Cart is empty" {
		t.Errorf("expected 'Cart is empty', got %q", msg)
	}
}

func TestCreateOrderBlockedByValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := seedTestUser(t, env.db, "blocked-cart@test.com", models.RoleCustomer)
	_, variant := seedProduct(t, env.db, "scarce", models.ProductStatusPublished, "9.00", 5)
	addItem(t, env, variant.ID, 3, bearer(token))

	env.db.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("stock_quantity", 1)

	w := env.do(jsonRequest("POST", "/api/v1/orders", orderBody, bearer(token)))
	expectStatus(t, w, http.StatusBadRequest)

	data := parseData(t, w)
	if errs, _ := data["errors"].([]any); len(errs) != 1 {
		t.Errorf("expected the blocking issues in the response, got %v", data)
	}

	var orders int64
	env.db.Model(&models.Order{}).Count(&orders)
	if orders != 0 {
		t.Errorf("expected no order, got %d", orders)
	}
	var stored models.ProductVariant
	env.db.First(&stored, "id = ?", variant.ID)
	if stored.StockQuantity != 1 {
		t.Errorf("stock must be untouched, got %d", stored.StockQuantity)
	}
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest("POST", "/api/v1/orders", orderBody, session("guest")))
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestCreateOrderRequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	_, token := seedTestUser(t, env.db, "noaddr@test.com", models.RoleCustomer)
	w := env.do(jsonRequest("POST", "/api/v1/orders", map[string]string{}, bearer(token)))
	expectStatus(t, w, http.StatusBadRequest)
}

func placeOrder(t *testing.T, env *testEnv, token string, variantID uuid.UUID, qty int) string {
	t.Helper()
	addItem(t, env, variantID, qty, bearer(token))
	w := env.do(jsonRequest("POST", "/api/v1/orders", orderBody, bearer(token)))
	expectStatus(t, w, http.StatusCreated)
	return parseData(t, w)["id"].(string)
}

func TestGetOrdersScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := seedTestUser(t, env.db, "alice@test.com", models.RoleCustomer)
	_, bobToken := seedTestUser(t, env.db, "bob@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(t, env.db, "admin@test.com", models.RoleAdmin)
	_, variant := seedProduct(t, env.db, "shared", models.ProductStatusPublished, "1.00", 10)

	orderID := placeOrder(t, env, aliceToken, variant.ID, 1)

	w := env.do(jsonRequest("GET", "/api/v1/orders", nil, bearer(aliceToken)))
	expectStatus(t, w, http.StatusOK)
	var orders []map[string]any
	json.Unmarshal(parseEnvelope(t, w).Data, &orders)
	if len(orders) != 1 {
		t.Errorf("expected 1 order for alice, got %d", len(orders))
	}

	w = env.do(jsonRequest("GET", "/api/v1/orders/"+orderID, nil, bearer(bobToken)))
	expectStatus(t, w, http.StatusNotFound)

	w = env.do(jsonRequest("GET", "/api/v1/orders/"+orderID, nil, bearer(adminToken)))
	expectStatus(t, w, http.StatusOK)

	w = env.do(jsonRequest("GET", "/api/v1/orders/"+orderID, nil, bearer(aliceToken)))
	expectStatus(t, w, http.StatusOK)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	_, token := seedTestUser(t, env.db, "status@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(t, env.db, "admin@test.com", models.RoleAdmin)
	_, variant := seedProduct(t, env.db, "boxed", models.ProductStatusPublished, "2.00", 10)
	orderID := placeOrder(t, env, token, variant.ID, 4)
	path := "/api/v1/admin/orders/" + orderID + "/status"

	w := env.do(jsonRequest("PUT", path, map[string]string{"status": "DELIVERED"}, bearer(adminToken)))
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(jsonRequest("PUT", path, map[string]string{"status": "CONFIRMED"}, bearer(adminToken)))
	expectStatus(t, w, http.StatusOK)
	if parseData(t, w)["status"] != "CONFIRMED" {
		t.Error("expected CONFIRMED")
	}

	w = env.do(jsonRequest("PUT", path, map[string]string{"status": "CANCELLED"}, bearer(adminToken)))
	expectStatus(t, w, http.StatusOK)

	var stored models.ProductVariant
	env.db.First(&stored, "id = ?", variant.ID)
	if stored.StockQuantity != 10 {
		t.Errorf("expected stock restored to 10, got %d", stored.StockQuantity)
	}

	w = env.do(jsonRequest("PUT", "/api/v1/admin/orders/"+uuid.New().String()+"/status", map[string]string{"status": "CONFIRMED"}, bearer(adminToken)))
	expectStatus(t, w, http.StatusNotFound)

	w = env.do(jsonRequest("PUT", path, map[string]string{"status": "CONFIRMED"}, bearer(token)))
	expectStatus(t, w, http.StatusForbidden)
}
