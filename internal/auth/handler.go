package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	tokenCookie        = "token"
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// Handler exposes the /auth endpoints.
type Handler struct {
	svc    *Service
	secure bool
}

// NewHandler builds the auth handler. secure marks cookies Secure, which is
// required in production.
func NewHandler(svc *Service, secure bool) *Handler {
	return &Handler{svc: svc, secure: secure}
}

// Register creates an account and returns its first access token.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	session, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	h.setCookie(c, tokenCookie, session.AccessToken, h.svc.Tokens().RegisterTTL())
	return c.JSON(fiber.Map{
		"success": true,
		"msg":     "User Registered Successfully",
		"token":   "Bearer " + session.AccessToken,
		"user":    session.User,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login issues an access token in the body and a refresh token cookie.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	session, err := h.svc.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.setCookie(c, refreshTokenCookie, session.RefreshToken, h.svc.Tokens().RefreshTTL())
	return c.JSON(fiber.Map{
		"success":     true,
		"msg":         "login successful",
		"accessToken": session.AccessToken,
		"user":        session.User,
	})
}

// Logout expires the session cookies. Issued tokens stay valid until they
// expire on their own.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if c.Cookies(refreshTokenCookie) == "" {
		return fiber.NewError(http.StatusForbidden, "User not logged in.")
	}
	for _, name := range []string{tokenCookie, accessTokenCookie, refreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HTTPOnly: true,
			Secure:   h.secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Logged out successfully"})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset emails a reset link.
func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Password reset token sent to the provided email."})
}

type resetPasswordRequest struct {
	ResetToken              string `json:"resetToken"`
	NewPassword             string `json:"newPassword"`
	NewPasswordConfirmation string `json:"newPasswordConfirmation"`
}

// ResetPassword applies a new password using a reset token.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.ResetPassword(c.UserContext(), req.ResetToken, req.NewPassword, req.NewPasswordConfirmation); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Password has been reset successfully."})
}

// RefreshToken rotates the access/refresh pair using the refresh cookie.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	session, err := h.svc.Refresh(c.UserContext(), c.Cookies(refreshTokenCookie))
	if err != nil {
		return err
	}
	h.setCookie(c, refreshTokenCookie, session.RefreshToken, h.svc.Tokens().RefreshTTL())
	return c.JSON(fiber.Map{
		"success":     true,
		"msg":         "Token refreshed",
		"accessToken": session.AccessToken,
	})
}

// CheckAuth validates the bearer token and returns the user it belongs to.
func (h *Handler) CheckAuth(c *fiber.Ctx) error {
	user, err := h.svc.CheckAuth(c.UserContext(), BearerToken(c.Get(fiber.HeaderAuthorization)))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Authenticated", "user": user})
}

func (h *Handler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
