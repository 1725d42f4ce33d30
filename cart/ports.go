package cart

import (
	"context"

	"storefront-backend/models"

	"github.com/google/uuid"
)

// Store is the persistence port of the cart engine. Implementations return
// errors wrapping ErrNotFound for absent rows and ErrConflict for unique or
// version violations.
type Store interface {
	FindCart(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindCartByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	// FindCartDetail loads items with their variant and product, oldest first.
	FindCartDetail(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	CreateCart(ctx context.Context, owner Owner) (*models.Cart, error)
	// TransferCart re-points a guest cart to userID only while it still
	// belongs to sessionID. Reports whether the row changed.
	TransferCart(ctx context.Context, cartID uuid.UUID, sessionID string, userID uuid.UUID) (bool, error)
	// ReleaseSession clears the session owner of a guest cart being merged
	// away, only while it still belongs to sessionID.
	ReleaseSession(ctx context.Context, cartID uuid.UUID, sessionID string) (bool, error)
	// RestoreSession hands a released cart back to sessionID while it is
	// still ownerless.
	RestoreSession(ctx context.Context, cartID uuid.UUID, sessionID string) (bool, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.CartItem, error)
	FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	// UpdateItem writes quantity and price only when the stored version is
	// still expectedVersion, then bumps item.Version.
	UpdateItem(ctx context.Context, item *models.CartItem, expectedVersion int) error
	// FoldItem applies UpdateItem to into and deletes the item fromID in the
	// same transaction.
	FoldItem(ctx context.Context, into *models.CartItem, expectedVersion int, fromID uuid.UUID) error
	MoveItem(ctx context.Context, itemID, toCartID uuid.UUID) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error

	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}
