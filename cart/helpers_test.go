package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/models"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var errCacheDown = errors.New("cache unavailable")

// fakeCache keeps JSON values in a map with no expiry and can be switched
// into failure mode.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    map[string]int
	failing bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, sets: map[string]int{}}
}

func (f *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errCacheDown
	}
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.sets[key]++
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeCache) put(t *testing.T, key string, value any) {
	t.Helper()
	if err := f.Set(context.Background(), key, value, time.Minute); err != nil {
		t.Fatal(err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatal(err)
	}
	// every pooled connection to :memory: would otherwise get its own database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeCache) {
	t.Helper()
	db := setupTestDB(t)
	fc := newFakeCache()
	return NewService(NewGormStore(db), fc, logger.Discard(), time.Minute), db, fc
}

type variantOpts struct {
	status models.ProductStatus
	price  string
	sale   string
	stock  int
}

func seedVariant(t *testing.T, db *gorm.DB, o variantOpts) *models.ProductVariant {
	t.Helper()
	if o.status == "" {
		o.status = models.ProductStatusPublished
	}
	if o.price == "" {
		o.price = "10.00"
	}
	product := models.Product{Name: "Product " + uuid.NewString()[:8], Slug: "p-" + uuid.NewString(), Status: o.status}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}
	variant := models.ProductVariant{
		ProductID:     product.ID,
		SKU:           "SKU-" + uuid.NewString()[:8],
		Price:         decimal.RequireFromString(o.price),
		StockQuantity: o.stock,
	}
	if o.sale != "" {
		variant.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString(o.sale))
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatal(err)
	}
	variant.Product = &product
	return &variant
}

func seedCart(t *testing.T, db *gorm.DB, owner Owner) *models.Cart {
	t.Helper()
	c := &models.Cart{}
	owner.apply(c)
	if err := db.Create(c).Error; err != nil {
		t.Fatal(err)
	}
	return c
}

func seedItem(t *testing.T, db *gorm.DB, cartID, variantID uuid.UUID, qty int, price string) *models.CartItem {
	t.Helper()
	item := &models.CartItem{CartID: cartID, VariantID: variantID, Quantity: qty, PriceAtAdd: decimal.RequireFromString(price)}
	if err := db.Create(item).Error; err != nil {
		t.Fatal(err)
	}
	return item
}

func itemByVariant(t *testing.T, db *gorm.DB, cartID, variantID uuid.UUID) models.CartItem {
	t.Helper()
	var item models.CartItem
	if err := db.Where("cart_id = ? AND variant_id = ?", cartID, variantID).First(&item).Error; err != nil {
		t.Fatalf("item for variant %s not found: %v", variantID, err)
	}
	return item
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
