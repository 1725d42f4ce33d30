package cart

import (
	"context"
	"errors"
	"log/slog"

	"storefront-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// errMergeRaced restarts the merge protocol from its first read.
var errMergeRaced = errors.New("merge raced with a concurrent writer")

// ResolveCart returns the caller's canonical cart, creating it on first use.
// When the identity carries both a user and a session the guest cart is
// merged into the user cart first.
func (s *Service) ResolveCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	user, hasUser := id.user()
	guest, hasGuest := id.guest()
	if hasUser && hasGuest {
		return s.MergeGuestCart(ctx, user, guest)
	}

	owner := user
	if hasGuest {
		owner = guest
	}

	var cached models.Cart
	if s.cacheGet(ctx, owner.CacheKey(), &cached) {
		return &cached, nil
	}

	c, err := s.findOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, owner.CacheKey(), c)
	return c, nil
}

func (s *Service) findOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		c, err := s.store.FindCartByOwner(ctx, owner)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		c, err = s.store.CreateCart(ctx, owner)
		if err == nil {
			s.log.InfoContext(ctx, "Created new cart",
				slog.String("cart_id", c.ID.String()), slog.String("owner", owner.String()))
			return c, nil
		}
		// a concurrent request created it first; the next lookup finds it
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return nil, newError(ErrConflict, "Could not resolve cart for %s", owner)
}

// findOptional returns nil without error when the owner has no cart. A row
// carrying both owner columns is reported as a conflict.
func (s *Service) findOptional(ctx context.Context, owner Owner) (*models.Cart, error) {
	c, err := s.store.FindCartByOwner(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := OwnerOf(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MergeGuestCart folds the guest's cart into the user's cart and returns the
// user cart. Matching variants add quantities and keep the lower snapshot
// price; other guest items are re-parented; the guest cart row is removed.
// Repeating a merge once the guest cart is gone returns the user cart as is.
func (s *Service) MergeGuestCart(ctx context.Context, user, guest Owner) (*models.Cart, error) {
	userID, ok := user.UserID()
	if !ok {
		return nil, newError(ErrIdentity, "Merge target must be a signed-in user")
	}
	sessionID, ok := guest.SessionID()
	if !ok {
		return nil, newError(ErrIdentity, "Merge source must be a guest session")
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		c, err := s.mergeOnce(ctx, userID, sessionID)
		if errors.Is(err, errMergeRaced) {
			continue
		}
		return c, err
	}
	return nil, newError(ErrConflict, "Could not merge guest cart into user cart")
}

func (s *Service) mergeOnce(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Cart, error) {
	user, guest := UserOwner(userID), GuestOwner(sessionID)

	guestCart, err := s.findOptional(ctx, guest)
	if err != nil {
		return nil, err
	}
	userCart, err := s.findOptional(ctx, user)
	if err != nil {
		return nil, err
	}

	var guestItems []models.CartItem
	if guestCart != nil {
		if guestItems, err = s.store.ListItems(ctx, guestCart.ID); err != nil {
			return nil, err
		}
	}

	if guestCart == nil || len(guestItems) == 0 {
		if userCart != nil {
			return userCart, nil
		}
		c, err := s.store.CreateCart(ctx, user)
		if errors.Is(err, ErrConflict) {
			return nil, errMergeRaced
		}
		if err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "Created new cart",
			slog.String("cart_id", c.ID.String()), slog.String("owner", user.String()))
		s.invalidate(ctx, user.CacheKey())
		return c, nil
	}

	if userCart == nil {
		moved, err := s.store.TransferCart(ctx, guestCart.ID, sessionID, userID)
		if errors.Is(err, ErrConflict) {
			// the user got a cart of their own in the meantime
			return nil, errMergeRaced
		}
		if err != nil {
			return nil, err
		}
		s.invalidate(ctx, guest.CacheKey(), user.CacheKey(), CartKey(guestCart.ID))
		if !moved {
			return s.mergedUserCart(ctx, user)
		}

		s.log.InfoContext(ctx, "Converted guest cart to user cart",
			slog.String("cart_id", guestCart.ID.String()),
			slog.String("user_id", userID.String()),
			slog.String("session_id", sessionID),
			slog.Int("items_count", len(guestItems)))

		guestCart.UserID = &userID
		guestCart.SessionID = nil
		return guestCart, nil
	}

	// Claim the guest cart so a concurrent merge of the same pair cannot
	// count its items twice.
	claimed, err := s.store.ReleaseSession(ctx, guestCart.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.invalidate(ctx, guest.CacheKey(), user.CacheKey(), CartKey(userCart.ID))
		return s.mergedUserCart(ctx, user)
	}

	if err := s.absorbGuestCart(ctx, guestCart.ID, userCart.ID, guestItems); err != nil {
		s.restoreGuestCart(ctx, guestCart.ID, sessionID, userCart.ID)
		return nil, err
	}
	s.invalidate(ctx, guest.CacheKey(), user.CacheKey(), CartKey(guestCart.ID), CartKey(userCart.ID))

	merged, err := s.mergedUserCart(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Merged guest cart into user cart",
		slog.String("user_id", userID.String()),
		slog.String("session_id", sessionID),
		slog.String("guest_cart_id", guestCart.ID.String()),
		slog.String("user_cart_id", userCart.ID.String()),
		slog.Int("merged_items_count", len(guestItems)))
	return merged, nil
}

func (s *Service) mergedUserCart(ctx context.Context, user Owner) (*models.Cart, error) {
	c, err := s.store.FindCartByOwner(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(ErrConflict, "Failed to merge carts")
	}
	return c, err
}

// absorbGuestCart moves every guest line into the user cart and drops the
// emptied guest row. Each line is absorbed atomically, so after a failure the
// guest cart holds exactly the lines not yet absorbed.
func (s *Service) absorbGuestCart(ctx context.Context, guestCartID, userCartID uuid.UUID, items []models.CartItem) error {
	for _, item := range items {
		if err := s.absorbItem(ctx, userCartID, item); err != nil {
			return err
		}
	}
	return s.store.DeleteCart(ctx, guestCartID)
}

// restoreGuestCart gives a claimed guest cart back to its session after a
// failed merge so its remaining lines stay reachable and the next merge
// resumes where this one stopped.
func (s *Service) restoreGuestCart(ctx context.Context, guestCartID uuid.UUID, sessionID string, userCartID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	restored, err := s.store.RestoreSession(ctx, guestCartID, sessionID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to restore guest cart after merge error",
			slog.String("cart_id", guestCartID.String()),
			slog.String("session_id", sessionID),
			slog.Any("err", err))
	} else if restored {
		s.log.WarnContext(ctx, "Restored guest cart after merge error",
			slog.String("cart_id", guestCartID.String()),
			slog.String("session_id", sessionID))
	}
	s.invalidate(ctx, SessionKey(sessionID), CartKey(guestCartID), CartKey(userCartID))
}

// absorbItem moves one guest line into the user cart, folding it into the
// user's line for the same variant when there is one.
func (s *Service) absorbItem(ctx context.Context, userCartID uuid.UUID, guestItem models.CartItem) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := s.store.FindItemByVariant(ctx, userCartID, guestItem.VariantID)
		switch {
		case errors.Is(err, ErrNotFound):
			err = s.store.MoveItem(ctx, guestItem.ID, userCartID)
		case err != nil:
			return err
		default:
			version := existing.Version
			existing.Quantity += guestItem.Quantity
			existing.PriceAtAdd = decimal.Min(existing.PriceAtAdd, guestItem.PriceAtAdd)
			err = s.store.FoldItem(ctx, existing, version, guestItem.ID)
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return newError(ErrConflict, "Could not merge item for variant %s", guestItem.VariantID)
}
