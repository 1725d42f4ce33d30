package cart

import (
	"strings"

	"storefront-backend/models"

	"github.com/google/uuid"
)

const maxSessionIDLen = 128

type ownerKind uint8

const (
	ownerUser ownerKind = iota + 1
	ownerGuest
)

// Owner is either a signed-in user or a guest session, never both. The zero
// value is not a valid owner.
type Owner struct {
	kind      ownerKind
	userID    uuid.UUID
	sessionID string
}

func UserOwner(id uuid.UUID) Owner { return Owner{kind: ownerUser, userID: id} }

func GuestOwner(sessionID string) Owner { return Owner{kind: ownerGuest, sessionID: sessionID} }

func (o Owner) IsUser() bool { return o.kind == ownerUser }

func (o Owner) UserID() (uuid.UUID, bool) { return o.userID, o.kind == ownerUser }

func (o Owner) SessionID() (string, bool) { return o.sessionID, o.kind == ownerGuest }

// CacheKey is the owner lookup key: cart:userId:<id> or cart:sessionId:<id>.
func (o Owner) CacheKey() string {
	if o.IsUser() {
		return UserKey(o.userID)
	}
	return SessionKey(o.sessionID)
}

func (o Owner) String() string {
	if o.IsUser() {
		return "user:" + o.userID.String()
	}
	return "guest:" + o.sessionID
}

// apply writes the owner onto the cart's nullable columns.
func (o Owner) apply(c *models.Cart) {
	c.UserID, c.SessionID = nil, nil
	if o.IsUser() {
		id := o.userID
		c.UserID = &id
		return
	}
	sid := o.sessionID
	c.SessionID = &sid
}

// OwnerOf reads the owner back from a stored cart. Rows with both or neither
// column set are corrupt.
func OwnerOf(c *models.Cart) (Owner, error) {
	hasUser := c.UserID != nil && *c.UserID != uuid.Nil
	hasSession := c.SessionID != nil && *c.SessionID != ""
	switch {
	case hasUser && hasSession:
		return Owner{}, newError(ErrConflict, "cart %s has both a user and a session owner", c.ID)
	case hasUser:
		return UserOwner(*c.UserID), nil
	case hasSession:
		return GuestOwner(*c.SessionID), nil
	}
	return Owner{}, newError(ErrConflict, "cart %s has no owner", c.ID)
}

// Identity is what a request knows about its caller: an optional
// authenticated user and an optional guest session header.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

func (i Identity) user() (Owner, bool) {
	if i.UserID == nil || *i.UserID == uuid.Nil {
		return Owner{}, false
	}
	return UserOwner(*i.UserID), true
}

func (i Identity) guest() (Owner, bool) {
	sid := strings.TrimSpace(i.SessionID)
	if sid == "" {
		return Owner{}, false
	}
	return GuestOwner(sid), true
}

func (i Identity) validate() error {
	_, hasUser := i.user()
	guest, hasGuest := i.guest()
	if !hasUser && !hasGuest {
		return newError(ErrIdentity, "Either a signed-in user or a session id is required")
	}
	if hasGuest && len(guest.sessionID) > maxSessionIDLen {
		return newError(ErrIdentity, "Session id must be at most %d characters", maxSessionIDLen)
	}
	return nil
}

// primary picks the user when present, otherwise the guest.
func (i Identity) primary() (Owner, error) {
	if err := i.validate(); err != nil {
		return Owner{}, err
	}
	if o, ok := i.user(); ok {
		return o, nil
	}
	o, _ := i.guest()
	return o, nil
}
