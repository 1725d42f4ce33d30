package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore implements Store on a gorm connection opened with
// TranslateError, so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *GormStore) FindCart(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find cart")
	}
	return &c, nil
}

func (s *GormStore) FindCartByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	q := s.db.WithContext(ctx)
	if id, ok := owner.UserID(); ok {
		q = q.Where("user_id = ?", id)
	} else {
		sid, _ := owner.SessionID()
		q = q.Where("session_id = ?", sid)
	}
	var c models.Cart
	if err := q.First(&c).Error; err != nil {
		return nil, translate(err, "find cart by owner")
	}
	return &c, nil
}

func (s *GormStore) FindCartDetail(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Items.Variant").
		Preload("Items.Variant.Product").
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "find cart detail")
	}
	return &c, nil
}

func (s *GormStore) CreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	c := &models.Cart{}
	owner.apply(c)
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate(err, "create cart")
	}
	return c, nil
}

func (s *GormStore) TransferCart(ctx context.Context, cartID uuid.UUID, sessionID string, userID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ? AND session_id = ?", cartID, sessionID).
		Updates(map[string]any{"user_id": userID, "session_id": nil})
	if res.Error != nil {
		return false, translate(res.Error, "transfer cart")
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ReleaseSession(ctx context.Context, cartID uuid.UUID, sessionID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ? AND session_id = ?", cartID, sessionID).
		Update("session_id", nil)
	if res.Error != nil {
		return false, translate(res.Error, "release session")
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) RestoreSession(ctx context.Context, cartID uuid.UUID, sessionID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ? AND user_id IS NULL AND session_id IS NULL", cartID).
		Update("session_id", sessionID)
	if res.Error != nil {
		return false, translate(res.Error, "restore session")
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) DeleteCart(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, "id = ?", id).Error
	})
	return translate(err, "delete cart")
}

func (s *GormStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).Where("cart_id = ?", cartID).Order("created_at ASC").Find(&items).Error
	if err != nil {
		return nil, translate(err, "list cart items")
	}
	return items, nil
}

func (s *GormStore) FindItem(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find cart item")
	}
	return &item, nil
}

func (s *GormStore) FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&item).Error
	if err != nil {
		return nil, translate(err, "find cart item by variant")
	}
	return &item, nil
}

func (s *GormStore) CreateItem(ctx context.Context, item *models.CartItem) error {
	return translate(s.db.WithContext(ctx).Create(item).Error, "create cart item")
}

func (s *GormStore) UpdateItem(ctx context.Context, item *models.CartItem, expectedVersion int) error {
	res := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]any{
			"quantity":     item.Quantity,
			"price_at_add": item.PriceAtAdd,
			"version":      expectedVersion + 1,
		})
	if res.Error != nil {
		return translate(res.Error, "update cart item")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update cart item %s at version %d: %w", item.ID, expectedVersion, ErrConflict)
	}
	item.Version = expectedVersion + 1
	return nil
}

func (s *GormStore) FoldItem(ctx context.Context, into *models.CartItem, expectedVersion int, fromID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := (&GormStore{db: tx}).UpdateItem(ctx, into, expectedVersion); err != nil {
			return err
		}
		if err := tx.Delete(&models.CartItem{}, "id = ?", fromID).Error; err != nil {
			return translate(err, "delete folded cart item")
		}
		return nil
	})
}

func (s *GormStore) MoveItem(ctx context.Context, itemID, toCartID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"cart_id": toCartID,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return translate(res.Error, "move cart item")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("move cart item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "delete cart item")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete cart item %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	return translate(err, "delete cart items")
}

func (s *GormStore) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var v models.ProductVariant
	if err := s.db.WithContext(ctx).Preload("Product").First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find variant")
	}
	return &v, nil
}
