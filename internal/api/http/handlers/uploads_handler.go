package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/storage"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// UploadsHandler streams stored evidence images.
type UploadsHandler struct {
	blobs storage.BlobStore
}

// NewUploadsHandler constructs handler.
func NewUploadsHandler(blobs storage.BlobStore) *UploadsHandler {
	return &UploadsHandler{blobs: blobs}
}

// Serve handles GET /uploads/:ref.
func (h *UploadsHandler) Serve(c *fiber.Ctx) error {
	ref := c.Params("ref")
	body, contentType, err := h.blobs.Open(c.UserContext(), ref)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidRef) {
		return apperrors.NewNotFound("upload", map[string]any{"ref": ref})
	}
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.SendStream(body)
}
