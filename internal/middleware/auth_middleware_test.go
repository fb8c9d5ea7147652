package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	user *model.User
	err  error
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	if token != "good" {
		return nil, jwt.ErrInvalidToken
	}
	return s.user, s.err
}

func newApp(mw fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/", mw, func(c *fiber.Ctx) error {
		actor, ok := Actor(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(actor.Name)
	})
	return app
}

func call(t *testing.T, app *fiber.App, header string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRequireAuth(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: uuid.New()}, FullName: "Ana"}
	app := newApp(RequireAuth(stubAuth{user: user}))

	code, body := call(t, app, "Bearer good")
	assert.Equal(t, 200, code)
	assert.Equal(t, "Ana", body)

	for _, header := range []string{"", "good", "Basic good", "Bearer bad", "Bearer "} {
		code, _ := call(t, app, header)
		assert.Equal(t, 401, code, "header %q", header)
	}

	replaced := newApp(RequireAuth(stubAuth{err: service.ErrSessionReplaced}))
	code, body = call(t, replaced, "Bearer good")
	assert.Equal(t, 401, code)
	assert.Contains(t, body, "another device")
}

func TestOptionalAuth(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: uuid.New()}, FullName: "Ana"}
	app := newApp(OptionalAuth(stubAuth{user: user}))

	code, body := call(t, app, "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "anonymous", body)

	code, body = call(t, app, "Bearer good")
	assert.Equal(t, 200, code)
	assert.Equal(t, "Ana", body)

	code, _ = call(t, app, "Bearer bad")
	assert.Equal(t, 401, code)
}
