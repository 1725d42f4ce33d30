package cart

import (
	"storefront-backend/models"

	"github.com/google/uuid"
)

// The cart cache key scheme is shared with other services reading the same
// cache and must not change.

// CartKey caches the detail view of one cart.
func CartKey(id uuid.UUID) string { return "cart:" + id.String() }

// UserKey caches the cart row owned by a signed-in user.
func UserKey(id uuid.UUID) string { return "cart:userId:" + id.String() }

// SessionKey caches the cart row owned by a guest session.
func SessionKey(sessionID string) string { return "cart:sessionId:" + sessionID }

// keysFor lists the cart's own key plus its owner key. A row with an invalid
// owner still yields the cart key alongside the error.
func keysFor(c *models.Cart) ([]string, error) {
	keys := []string{CartKey(c.ID)}
	owner, err := OwnerOf(c)
	if err != nil {
		return keys, err
	}
	return append(keys, owner.CacheKey()), nil
}
