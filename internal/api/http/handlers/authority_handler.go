package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/api/dto"
	"github.com/spot-sort/issue-service/internal/service"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// AuthorityHandler serves the zone dashboard and issue handling endpoints.
type AuthorityHandler struct {
	issues   *service.IssueService
	maxBytes int
}

// NewAuthorityHandler constructs handler.
func NewAuthorityHandler(issues *service.IssueService, maxUploadBytes int) *AuthorityHandler {
	return &AuthorityHandler{issues: issues, maxBytes: maxUploadBytes}
}

// Dashboard handles GET /api/issues/authority/dashboard.
func (h *AuthorityHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter := parseListQuery(c)
	items, err := h.issues.Dashboard(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueListResponse(h.issues, items, filter)})
}

// UpdateStatus handles PUT /api/issues/:ticketId/status.
func (h *AuthorityHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	issue, err := h.issues.UpdateStatus(c.UserContext(), actor, c.Params("ticketId"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}

// Assign handles PUT /api/issues/:ticketId/assign.
func (h *AuthorityHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.issues.Assign(c.UserContext(), actor, c.Params("ticketId"), service.AssignInput{
		AssigneeID: req.AssignedTo,
		Zone:       req.Zone,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}

// Resolve handles PUT /api/issues/:ticketId/resolve.
func (h *AuthorityHandler) Resolve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	evidence, err := readEvidence(c, "resolutionImage", h.maxBytes)
	if err != nil {
		return err
	}
	issue, err := h.issues.Resolve(c.UserContext(), actor, c.Params("ticketId"), evidence)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}
