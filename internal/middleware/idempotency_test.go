package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasdev42/crypto-portfolio/internal/logging"
)

func newIdempotentApp(t *testing.T, cache *redis.Client) (*fiber.App, *int) {
	t.Helper()
	calls := 0
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(userIDKey, c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/portfolio/add", func(c *fiber.Ctx) error {
		calls++
		if c.Query("fail") != "" {
			return fiber.NewError(fiber.StatusConflict, "Coin already exists within portfolio.")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "call": calls})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, target, key, user string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	req.Header.Set("X-Test-User", user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app, calls := newIdempotentApp(t, cache)

	status, first := post(t, app, "/portfolio/add", "abc123", "u1")
	require.Equal(t, fiber.StatusCreated, status)

	status, second := post(t, app, "/portfolio/add", "abc123", "u1")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, *calls)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app, calls := newIdempotentApp(t, cache)

	post(t, app, "/portfolio/add", "same", "u1")
	post(t, app, "/portfolio/add", "same", "u2")
	assert.Equal(t, 2, *calls)
}

func TestIdempotencyWithoutHeaderOrCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app, calls := newIdempotentApp(t, cache)
	post(t, app, "/portfolio/add", "", "u1")
	post(t, app, "/portfolio/add", "", "u1")
	assert.Equal(t, 2, *calls)

	bare, bareCalls := newIdempotentApp(t, nil)
	post(t, bare, "/portfolio/add", "k", "u1")
	post(t, bare, "/portfolio/add", "k", "u1")
	assert.Equal(t, 2, *bareCalls)
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app, calls := newIdempotentApp(t, cache)

	status, _ := post(t, app, "/portfolio/add?fail=1", "k1", "u1")
	require.Equal(t, fiber.StatusConflict, status)
	status, _ = post(t, app, "/portfolio/add?fail=1", "k1", "u1")
	require.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, 2, *calls)
}

func TestIdempotencyInProgress(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app, calls := newIdempotentApp(t, cache)
	require.NoError(t, mr.Set(idempotencyPrefix+"u1:/portfolio/add:busy", inProgressMarker))

	status, _ := post(t, app, "/portfolio/add", "busy", "u1")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, 0, *calls)
}
