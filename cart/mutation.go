package cart

import (
	"context"
	"errors"
	"log/slog"

	"storefront-backend/models"

	"github.com/google/uuid"
)

// AddItemToCart adds quantity of a variant, merging into the existing line
// for that variant. The stock ceiling applies to the merged quantity and the
// line's snapshot price is reset to the current effective price.
func (s *Service) AddItemToCart(ctx context.Context, cartID, variantID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, newError(ErrValidation, "Quantity must be greater than 0")
	}

	c, err := s.store.FindCart(ctx, cartID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(ErrNotFound, "Cart not found")
	}
	if err != nil {
		return nil, err
	}

	variant, err := s.purchasableVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := s.store.FindItemByVariant(ctx, cartID, variantID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		merged := quantity
		if existing != nil {
			merged += existing.Quantity
		}
		if merged > variant.StockQuantity {
			return nil, newError(ErrStock, "Only %d item(s) in stock, requested %d", variant.StockQuantity, merged)
		}

		price := variant.EffectivePrice()
		var item *models.CartItem
		if existing == nil {
			item = &models.CartItem{CartID: cartID, VariantID: variantID, Quantity: merged, PriceAtAdd: price}
			err = s.store.CreateItem(ctx, item)
		} else {
			item = existing
			version := item.Version
			item.Quantity = merged
			item.PriceAtAdd = price
			err = s.store.UpdateItem(ctx, item, version)
		}
		if errors.Is(err, ErrConflict) {
			s.log.DebugContext(ctx, "cart item write raced, retrying",
				slog.String("cart_id", cartID.String()), slog.String("variant_id", variantID.String()), slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidateRow(ctx, c)
		return item, nil
	}
	return nil, newError(ErrConflict, "Cart item was modified concurrently, please retry")
}

// UpdateCartItem sets an absolute quantity. The snapshot price is kept.
func (s *Service) UpdateCartItem(ctx context.Context, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, newError(ErrValidation, "Quantity must be greater than 0")
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		item, err := s.FindItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		variant, err := s.purchasableVariant(ctx, item.VariantID)
		if err != nil {
			return nil, err
		}
		if quantity > variant.StockQuantity {
			return nil, newError(ErrStock, "Only %d item(s) in stock, requested %d", variant.StockQuantity, quantity)
		}

		version := item.Version
		item.Quantity = quantity
		err = s.store.UpdateItem(ctx, item, version)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidateCart(ctx, item.CartID)
		return item, nil
	}
	return nil, newError(ErrConflict, "Cart item was modified concurrently, please retry")
}

func (s *Service) RemoveCartItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	err = s.store.DeleteItem(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		return newError(ErrNotFound, "Cart item not found")
	}
	if err != nil {
		return err
	}
	s.invalidateCart(ctx, item.CartID)
	return nil
}

// ClearCart deletes every item of the cart. Clearing an empty or unknown
// cart is not an error.
func (s *Service) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.store.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	s.invalidateCart(ctx, cartID)
	return nil
}

// ClearCartAfterOrder empties the owner's cart once an order has been placed.
// The user id wins when both identifiers are given. A missing cart is logged,
// not an error; the cart row itself is kept.
func (s *Service) ClearCartAfterOrder(ctx context.Context, id Identity) error {
	owner, err := id.primary()
	if err != nil {
		return err
	}

	c, err := s.findOptional(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		s.log.InfoContext(ctx, "Cart not found for clearing after order", slog.String("owner", owner.String()))
		return nil
	}

	if err := s.store.DeleteItems(ctx, c.ID); err != nil {
		return err
	}
	s.invalidateRow(ctx, c)
	s.log.InfoContext(ctx, "Cleared cart after successful order",
		slog.String("cart_id", c.ID.String()), slog.String("owner", owner.String()))
	return nil
}

// FindItem lets callers check which cart an item belongs to before acting on it.
func (s *Service) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.store.FindItem(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(ErrNotFound, "Cart item not found")
	}
	return item, err
}

func (s *Service) purchasableVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := s.store.FindVariant(ctx, variantID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(ErrNotFound, "Product variant not found")
	}
	if err != nil {
		return nil, err
	}
	if variant.Product == nil || !variant.Product.IsPublished() {
		return nil, newError(ErrUnavailable, "Product is not available for purchase")
	}
	return variant, nil
}

// invalidateCart drops the cart key and, when the row still exists, its
// owner keys.
func (s *Service) invalidateCart(ctx context.Context, cartID uuid.UUID) {
	c, err := s.store.FindCart(ctx, cartID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WarnContext(ctx, "lookup for cache invalidation failed",
				slog.String("cart_id", cartID.String()), slog.Any("err", err))
		}
		s.invalidate(ctx, CartKey(cartID))
		return
	}
	s.invalidateRow(ctx, c)
}
