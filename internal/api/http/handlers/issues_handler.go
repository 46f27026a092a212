package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/api/dto"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/service"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// IssuesHandler serves reporting, tracking and citizen issue endpoints.
type IssuesHandler struct {
	issues   *service.IssueService
	submit   *service.SubmissionService
	maxBytes int
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues *service.IssueService, submit *service.SubmissionService, maxUploadBytes int) *IssuesHandler {
	return &IssuesHandler{issues: issues, submit: submit, maxBytes: maxUploadBytes}
}

// Create handles POST /api/issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var form dto.IssueFormFields
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	report, err := reportFromForm(form)
	if err != nil {
		return err
	}
	evidence, err := readEvidence(c, "issueImage", h.maxBytes)
	if err != nil {
		return err
	}

	issue, err := h.submit.SubmitAuthenticated(c.UserContext(), actor, report, evidence)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}

// SendOTP handles POST /api/issues/otp-send.
func (h *IssuesHandler) SendOTP(c *fiber.Ctx) error {
	var req dto.AnonymousOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Lat == nil || req.Lng == nil {
		return apperrors.NewValidationError("lat and lng required", nil)
	}

	ticketID, err := h.submit.RequestAnonymous(c.UserContext(), service.AnonymousReportInput{
		ReporterName:   req.ReporterName,
		ReporterEmail:  req.ReporterEmail,
		ReporterMobile: req.ReporterMobile,
		Report: service.ReportInput{
			Type:        domain.IssueType(strings.ToLower(string(req.IssueType))),
			Title:       req.Title,
			Description: req.Description,
			Zone:        req.Zone,
			Location:    domain.Location{Lat: *req.Lat, Lng: *req.Lng},
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.OTPSentResponse{Message: "Verification code sent to email.", TempID: ticketID},
	})
}

// ConfirmAnonymous handles POST /api/issues/anonymous.
func (h *IssuesHandler) ConfirmAnonymous(c *fiber.Ctx) error {
	var form dto.AnonymousConfirmFields
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if form.TempID == "" || form.EnteredOTP == "" {
		return apperrors.NewValidationError("tempId and enteredOtp required", nil)
	}
	evidence, err := readEvidence(c, "issueImage", h.maxBytes)
	if err != nil {
		return err
	}

	result, err := h.submit.ConfirmAnonymous(c.UserContext(), form.TempID, form.EnteredOTP, evidence)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.AnonymousConfirmResponse{
			Message:          "Issue reported successfully.",
			TicketID:         result.Issue.TicketID,
			NotificationSent: result.NotificationSent,
		},
	})
}

// Track handles GET /api/issues/track/:ticketId.
func (h *IssuesHandler) Track(c *fiber.Ctx) error {
	issue, err := h.issues.Track(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	resp := dto.TrackResponse{
		TicketID:      issue.TicketID,
		Status:        issue.Status,
		Title:         issue.Title,
		IssueImageURL: h.issues.EvidenceURL(issue.IssueImageRef),
	}
	if issue.ResolutionImageRef != nil {
		resp.ResolutionImageURL = h.issues.EvidenceURL(*issue.ResolutionImageRef)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// List handles GET /api/issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter := parseListQuery(c)
	items, err := h.issues.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueListResponse(h.issues, items, filter)})
}

// Get handles GET /api/issues/:ticketId.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	issue, err := h.issues.Get(c.UserContext(), actor, c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}

// Verify handles PUT /api/issues/:ticketId/verify.
func (h *IssuesHandler) Verify(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	issue, err := h.issues.Verify(c.UserContext(), actor, c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(h.issues, issue)})
}

func reportFromForm(form dto.IssueFormFields) (service.ReportInput, error) {
	lat, err := parseCoordinate("lat", form.Lat)
	if err != nil {
		return service.ReportInput{}, err
	}
	lng, err := parseCoordinate("lng", form.Lng)
	if err != nil {
		return service.ReportInput{}, err
	}
	return service.ReportInput{
		Type:        domain.IssueType(strings.ToLower(strings.TrimSpace(form.IssueType))),
		Title:       form.Title,
		Description: form.Description,
		Zone:        form.Zone,
		Location:    domain.Location{Lat: lat, Lng: lng},
	}, nil
}
