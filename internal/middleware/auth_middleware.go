package middleware

import (
	"context"
	"errors"
	"strings"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	localUserID    = "user_id"
	localUserName  = "user_name"
	localUserEmail = "user_email"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth is middleware that validates the JWT and sets the user in context
func RequireAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": authMessage(err)})
		}

		setUser(c, user)
		return c.Next()
	}
}

// OptionalAuth lets anonymous requests through. A token, when present,
// must still be valid.
func OptionalAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return RequireAuth(auth)(c)
	}
}

// Actor returns the authenticated user of the request, if any.
func Actor(c *fiber.Ctx) (service.Actor, bool) {
	id, ok := c.Locals(localUserID).(uuid.UUID)
	if !ok {
		return service.Actor{}, false
	}
	name, _ := c.Locals(localUserName).(string)
	return service.Actor{ID: id, Name: name}, true
}

func setUser(c *fiber.Ctx, user *model.User) {
	c.Locals(localUserID, user.ID)
	c.Locals(localUserName, user.FullName)
	c.Locals(localUserEmail, user.Email)
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", jwt.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization format. Use: Bearer <token>")
	}
	return strings.TrimSpace(token), nil
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrSessionReplaced), errors.Is(err, service.ErrUserInactive):
		return err.Error()
	}
	return jwt.ErrInvalidToken.Error()
}
