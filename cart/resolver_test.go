package cart

import (
	"context"
	"errors"
	"testing"

	"storefront-backend/models"

	"github.com/google/uuid"
)

func TestResolveCartRequiresIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ResolveCart(context.Background(), Identity{})
	assertKind(t, err, ErrIdentity)
}

func TestResolveCartIdempotentForUser(t *testing.T) {
	ctx := context.Background()
	svc, db, fc := newTestService(t)
	uid := uuid.New()

	first, err := svc.ResolveCart(ctx, Identity{UserID: &uid})
	if err != nil {
		t.Fatal(err)
	}
	if !fc.has(UserKey(uid)) {
		t.Error("expected owner key to be cached")
	}

	second, err := svc.ResolveCart(ctx, Identity{UserID: &uid})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same cart id, got %s and %s", first.ID, second.ID)
	}

	// bypass the cache as well
	fc.Delete(ctx, UserKey(uid))
	third, err := svc.ResolveCart(ctx, Identity{UserID: &uid})
	if err != nil {
		t.Fatal(err)
	}
	if third.ID != first.ID {
		t.Errorf("expected same cart id from store, got %s", third.ID)
	}

	var count int64
	db.Model(&models.Cart{}).Where("user_id = ?", uid).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 cart row, got %d", count)
	}
}

func TestResolveCartGuest(t *testing.T) {
	ctx := context.Background()
	svc, _, fc := newTestService(t)

	c, err := svc.ResolveCart(ctx, Identity{SessionID: "guest-1"})
	if err != nil {
		t.Fatal(err)
	}
	if c.SessionID == nil || *c.SessionID != "guest-1" || c.UserID != nil {
		t.Errorf("expected guest-owned cart, got %+v", c)
	}
	if !fc.has(SessionKey("guest-1")) {
		t.Error("expected session key to be cached")
	}
}

func TestMergeCompleteness(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	uid := uuid.New()

	a := seedVariant(t, db, variantOpts{price: "10.00", stock: 50})
	b := seedVariant(t, db, variantOpts{price: "5.00", stock: 50})

	guest := seedCart(t, db, GuestOwner("sess-merge"))
	seedItem(t, db, guest.ID, a.ID, 2, "10.00")
	seedItem(t, db, guest.ID, b.ID, 1, "5.00")

	user := seedCart(t, db, UserOwner(uid))
	seedItem(t, db, user.ID, a.ID, 3, "12.00")

	merged, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-merge"})
	if err != nil {
		t.Fatal(err)
	}
	if merged.ID != user.ID {
		t.Fatalf("expected user cart %s, got %s", user.ID, merged.ID)
	}

	var items []models.CartItem
	db.Where("cart_id = ?", user.ID).Find(&items)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	itemA := itemByVariant(t, db, user.ID, a.ID)
	if itemA.Quantity != 5 {
		t.Errorf("expected A qty 5, got %d", itemA.Quantity)
	}
	if !itemA.PriceAtAdd.Equal(mustDecimal("10")) {
		t.Errorf("expected A price 10 (lower snapshot), got %s", itemA.PriceAtAdd)
	}
	itemB := itemByVariant(t, db, user.ID, b.ID)
	if itemB.Quantity != 1 || !itemB.PriceAtAdd.Equal(mustDecimal("5")) {
		t.Errorf("expected B qty 1 @ 5, got %d @ %s", itemB.Quantity, itemB.PriceAtAdd)
	}

	var guestCount int64
	db.Model(&models.Cart{}).Where("id = ?", guest.ID).Count(&guestCount)
	if guestCount != 0 {
		t.Error("expected guest cart row to be deleted")
	}
	var orphanItems int64
	db.Model(&models.CartItem{}).Where("cart_id = ?", guest.ID).Count(&orphanItems)
	if orphanItems != 0 {
		t.Errorf("expected no items left on guest cart, got %d", orphanItems)
	}
}

func TestMergeInvalidatesBothOwners(t *testing.T) {
	ctx := context.Background()
	svc, db, fc := newTestService(t)
	uid := uuid.New()
	v := seedVariant(t, db, variantOpts{stock: 10})

	guest := seedCart(t, db, GuestOwner("sess-inv"))
	seedItem(t, db, guest.ID, v.ID, 1, "10.00")
	user := seedCart(t, db, UserOwner(uid))

	fc.put(t, SessionKey("sess-inv"), guest)
	fc.put(t, UserKey(uid), user)
	fc.put(t, CartKey(guest.ID), guest)
	fc.put(t, CartKey(user.ID), user)

	if _, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-inv"}); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{SessionKey("sess-inv"), UserKey(uid), CartKey(guest.ID), CartKey(user.ID)} {
		if fc.has(key) {
			t.Errorf("expected %s to be invalidated", key)
		}
	}
}

func TestMergeConvertsGuestCartWhenUserHasNone(t *testing.T) {
	ctx := context.Background()
	svc, db, fc := newTestService(t)
	uid := uuid.New()
	v := seedVariant(t, db, variantOpts{stock: 10})

	guest := seedCart(t, db, GuestOwner("sess-convert"))
	seedItem(t, db, guest.ID, v.ID, 2, "10.00")
	fc.put(t, SessionKey("sess-convert"), guest)

	c, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-convert"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != guest.ID {
		t.Errorf("expected the guest cart to be re-owned, got new cart %s", c.ID)
	}

	var stored models.Cart
	db.First(&stored, "id = ?", guest.ID)
	if stored.UserID == nil || *stored.UserID != uid {
		t.Error("expected user_id to be set")
	}
	if stored.SessionID != nil {
		t.Error("expected session_id to be cleared")
	}
	if fc.has(SessionKey("sess-convert")) {
		t.Error("expected session key to be invalidated")
	}
}

func TestMergeWithoutGuestCartCreatesUserCart(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	uid := uuid.New()

	c, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "never-used"})
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID == nil || *c.UserID != uid {
		t.Errorf("expected user cart, got %+v", c)
	}
	var count int64
	db.Model(&models.Cart{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 cart, got %d", count)
	}
}

func TestMergeEmptyGuestCartReturnsUserCart(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	uid := uuid.New()
	seedCart(t, db, GuestOwner("sess-empty"))
	user := seedCart(t, db, UserOwner(uid))

	c, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-empty"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != user.ID {
		t.Errorf("expected user cart %s, got %s", user.ID, c.ID)
	}
}

func TestMergeTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newTestService(t)
	uid := uuid.New()
	v := seedVariant(t, db, variantOpts{stock: 50})

	guest := seedCart(t, db, GuestOwner("sess-twice"))
	seedItem(t, db, guest.ID, v.ID, 2, "10.00")
	user := seedCart(t, db, UserOwner(uid))
	seedItem(t, db, user.ID, v.ID, 1, "10.00")

	id := Identity{UserID: &uid, SessionID: "sess-twice"}
	if _, err := svc.ResolveCart(ctx, id); err != nil {
		t.Fatal(err)
	}
	again, err := svc.ResolveCart(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != user.ID {
		t.Errorf("expected user cart, got %s", again.ID)
	}
	if got := itemByVariant(t, db, user.ID, v.ID).Quantity; got != 3 {
		t.Errorf("expected quantity 3 after repeated merge, got %d", got)
	}
}

// claimedStore simulates a concurrent merge that already claimed the guest cart.
type claimedStore struct {
	*GormStore
}

func (s claimedStore) ReleaseSession(ctx context.Context, cartID uuid.UUID, sessionID string) (bool, error) {
	if _, err := s.GormStore.ReleaseSession(ctx, cartID, sessionID); err != nil {
		return false, err
	}
	return false, nil
}

func TestMergeSkipsGuestCartClaimedByConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(claimedStore{NewGormStore(db)}, newFakeCache(), nil, 0)
	uid := uuid.New()
	v := seedVariant(t, db, variantOpts{stock: 50})

	guest := seedCart(t, db, GuestOwner("sess-claimed"))
	seedItem(t, db, guest.ID, v.ID, 4, "10.00")
	user := seedCart(t, db, UserOwner(uid))
	seedItem(t, db, user.ID, v.ID, 1, "10.00")

	c, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-claimed"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != user.ID {
		t.Errorf("expected user cart, got %s", c.ID)
	}
	if got := itemByVariant(t, db, user.ID, v.ID).Quantity; got != 1 {
		t.Errorf("expected guest items not to be applied twice, got quantity %d", got)
	}
}

// staleTransferStore reports that the guest cart changed owner underneath us.
type staleTransferStore struct {
	*GormStore
}

func (staleTransferStore) TransferCart(context.Context, uuid.UUID, string, uuid.UUID) (bool, error) {
	return false, nil
}

func TestMergeConflictWhenTransferLostAndNoUserCart(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(staleTransferStore{NewGormStore(db)}, newFakeCache(), nil, 0)
	uid := uuid.New()
	v := seedVariant(t, db, variantOpts{stock: 5})
	guest := seedCart(t, db, GuestOwner("sess-lost"))
	seedItem(t, db, guest.ID, v.ID, 1, "10.00")

	_, err := svc.ResolveCart(ctx, Identity{UserID: &uid, SessionID: "sess-lost"})
	assertKind(t, err, ErrConflict)
}

var errConnReset = errors.New("connection reset")

// flakyMoveStore fails item moves while failing is set.
type flakyMoveStore struct {
	*GormStore
	failing bool
}

func (s *flakyMoveStore) MoveItem(ctx context.Context, itemID, toCartID uuid.UUID) error {
	if s.failing {
		return errConnReset
	}
	return s.GormStore.MoveItem(ctx, itemID, toCartID)
}

func TestMergeFailureKeepsGuestItemsReachable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := &flakyMoveStore{GormStore: NewGormStore(db), failing: true}
	svc := NewService(store, newFakeCache(), nil, 0)
	uid := uuid.New()
	shared := seedVariant(t, db, variantOpts{stock: 50})
	guestOnly := seedVariant(t, db, variantOpts{stock: 50})

	guest := seedCart(t, db, GuestOwner("sess-flaky"))
	seedItem(t, db, guest.ID, shared.ID, 2, "10.00")
	seedItem(t, db, guest.ID, guestOnly.ID, 3, "10.00")
	user := seedCart(t, db, UserOwner(uid))
	seedItem(t, db, user.ID, shared.ID, 1, "10.00")

	id := Identity{UserID: &uid, SessionID: "sess-flaky"}
	if _, err := svc.ResolveCart(ctx, id); !errors.Is(err, errConnReset) {
		t.Fatalf("expected the move failure, got %v", err)
	}

	var reloaded models.Cart
	if err := db.First(&reloaded, "id = ?", guest.ID).Error; err != nil {
		t.Fatalf("guest cart should survive a failed merge: %v", err)
	}
	if reloaded.SessionID == nil || *reloaded.SessionID != "sess-flaky" || reloaded.UserID != nil {
		t.Fatalf("expected guest cart back under its session, got %+v", reloaded)
	}
	sessionCart, err := svc.ResolveCart(ctx, Identity{SessionID: "sess-flaky"})
	if err != nil {
		t.Fatal(err)
	}
	if sessionCart.ID != guest.ID {
		t.Errorf("expected session to resolve to guest cart %s, got %s", guest.ID, sessionCart.ID)
	}

	store.failing = false
	merged, err := svc.ResolveCart(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ID != user.ID {
		t.Errorf("expected user cart, got %s", merged.ID)
	}
	if got := itemByVariant(t, db, user.ID, shared.ID).Quantity; got != 3 {
		t.Errorf("expected shared quantity 3, got %d", got)
	}
	if got := itemByVariant(t, db, user.ID, guestOnly.ID).Quantity; got != 3 {
		t.Errorf("expected guest-only quantity 3, got %d", got)
	}

	var guestRows, ownerless int64
	db.Model(&models.Cart{}).Where("id = ?", guest.ID).Count(&guestRows)
	db.Model(&models.Cart{}).Where("user_id IS NULL AND session_id IS NULL").Count(&ownerless)
	if guestRows != 0 {
		t.Error("expected guest cart to be removed after the retried merge")
	}
	if ownerless != 0 {
		t.Errorf("expected no ownerless carts, got %d", ownerless)
	}
}

func TestGormStoreRestoreSessionOnlyWhenOwnerless(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewGormStore(db)
	uid := uuid.New()

	owned := seedCart(t, db, UserOwner(uid))
	restored, err := store.RestoreSession(ctx, owned.ID, "sess-x")
	if err != nil {
		t.Fatal(err)
	}
	if restored {
		t.Error("a user-owned cart must not be handed to a session")
	}

	released := seedCart(t, db, GuestOwner("sess-y"))
	if ok, err := store.ReleaseSession(ctx, released.ID, "sess-y"); err != nil || !ok {
		t.Fatalf("release failed: %v %v", ok, err)
	}
	restored, err = store.RestoreSession(ctx, released.ID, "sess-y")
	if err != nil {
		t.Fatal(err)
	}
	if !restored {
		t.Error("expected ownerless cart to be restored")
	}
}
