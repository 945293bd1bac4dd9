package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// SessionHeader carries the guest session token for unauthenticated callers.
const SessionHeader = "X-Session-Token"

const userKeyPrefix = "user-"

// Identity is the caller of a cart or checkout operation: either an
// authenticated user or an anonymous guest session. The session key is the
// cart lookup key; user-bound carts share the "user-<id>" namespace so a
// user has exactly one cart regardless of device.
type Identity struct {
	UserID     string // empty for guests
	SessionKey string
}

func (id Identity) IsGuest() bool {
	return id.UserID == ""
}

// ForUser builds the user-bound identity for a user id.
func ForUser(userID string) Identity {
	return Identity{UserID: userID, SessionKey: userKeyPrefix + userID}
}

// ForGuest builds a guest identity from a session token.
func ForGuest(token string) Identity {
	return Identity{SessionKey: token}
}

// IsUserKey reports whether a session key belongs to the user-bound namespace.
func IsUserKey(sessionKey string) bool {
	return strings.HasPrefix(sessionKey, userKeyPrefix)
}

// FromCtx resolves the caller: JWT user claim when present, otherwise the
// guest session token header. Returns fiber.ErrUnauthorized when neither is
// supplied.
func FromCtx(c *fiber.Ctx) (Identity, error) {
	if userID, err := UserIDFromCtx(c); err == nil {
		return ForUser(userID), nil
	}
	if token := c.Get(SessionHeader); token != "" {
		return ForGuest(token), nil
	}
	return Identity{}, fiber.ErrUnauthorized
}

// UserIDFromCtx extracts the authenticated user id from the JWT stored in
// request locals by the jwt middleware.
func UserIDFromCtx(c *fiber.Ctx) (string, error) {
	u := c.Locals("user")
	if u == nil {
		return "", fiber.ErrUnauthorized
	}
	tok, ok := u.(*jwt.Token)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	if raw, ok := claims["user_id"]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fiber.ErrUnauthorized
}
