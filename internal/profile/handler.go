package profile

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/middleware"
)

const avatarField = "avatar"

// Handler exposes the /upload endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds the upload handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// UploadProfilePicture accepts a multipart "avatar" file.
func (h *Handler) UploadProfilePicture(c *fiber.Ctx) error {
	fh, err := c.FormFile(avatarField)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "No file uploaded")
	}
	if fh.Size > MaxPictureSize {
		return fiber.NewError(http.StatusBadRequest, "Image cannot exceed 3MB")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxPictureSize+1))
	if err != nil {
		return err
	}
	pic, err := h.svc.Upload(c.UserContext(), middleware.UserID(c), data)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"msg":            "Profile picture uploaded successfully",
		"profilePicture": pic.Key,
		"url":            pic.URL,
	})
}

// ProfilePictureURL returns the caller's picture key and a fetchable URL.
func (h *Handler) ProfilePictureURL(c *fiber.Ctx) error {
	pic, err := h.svc.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"msg":            "Profile picture retrieved successfully",
		"profilePicture": pic.Key,
		"url":            pic.URL,
	})
}
