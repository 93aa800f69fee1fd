package middleware

import (
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

func TestLoginRateLimitPerUsername(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Post("/auth/login", LoginRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	login := func(username string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/auth/login", strings.NewReader(`{"username":"`+username+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, login("alice"))
	assert.Equal(t, fiber.StatusOK, login("Alice"))
	assert.Equal(t, fiber.StatusTooManyRequests, login("alice"))
	assert.Equal(t, fiber.StatusOK, login("bob"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, fiber.StatusOK, login("alice"))
}

func TestLoginRateLimitRearmsMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set(loginRateLimitPrefix+"alice", "100"))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Post("/auth/login", LoginRateLimit(cache, 5, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	login := func() int {
		req := httptest.NewRequest(fiber.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusTooManyRequests, login())
	assert.Greater(t, mr.TTL(loginRateLimitPrefix+"alice"), time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, fiber.StatusOK, login())
}
