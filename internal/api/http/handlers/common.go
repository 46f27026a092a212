package handlers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/api/dto"
	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/service"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

const defaultPageSize = 20

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

// readEvidence loads the multipart file field. Reads stop one byte past
// maxBytes so the size check can still reject the upload.
func readEvidence(c *fiber.Ctx, field string, maxBytes int) (service.Evidence, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.Evidence{}, apperrors.NewValidationError(field+" is required", map[string]any{"field": field})
	}
	file, err := header.Open()
	if err != nil {
		return service.Evidence{}, apperrors.NewValidationError("could not read "+field, map[string]any{"field": field})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(maxBytes)+1))
	if err != nil {
		return service.Evidence{}, apperrors.NewValidationError("could not read "+field, map[string]any{"field": field})
	}
	return service.Evidence{Data: data, Filename: header.Filename}, nil
}

func parseCoordinate(field, val string) (float64, error) {
	if strings.TrimSpace(val) == "" {
		return 0, apperrors.NewValidationError(field+" is required", map[string]any{"field": field})
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, apperrors.NewValidationError(field+" must be a number", map[string]any{"field": field})
	}
	return f, nil
}

func parseListQuery(c *fiber.Ctx) service.IssueListFilter {
	filter := service.IssueListFilter{}
	for _, part := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.IssueStatus(part))
	}
	for _, part := range splitCSV(c.Query("type")) {
		filter.Types = append(filter.Types, domain.IssueType(strings.ToLower(part)))
	}
	if zone := strings.TrimSpace(c.Query("zone")); zone != "" {
		filter.Zone = &zone
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func issueResponse(issues *service.IssueService, issue *domain.Issue) dto.IssueResponse {
	resp := dto.IssueResponse{
		TicketID:      issue.TicketID,
		IssueType:     issue.Type,
		Title:         issue.Title,
		Description:   issue.Description,
		Lat:           issue.Location.Lat,
		Lng:           issue.Location.Lng,
		Zone:          issue.Zone,
		Status:        issue.Status,
		ReporterID:    issue.ReporterID,
		AssignedTo:    issue.AssigneeID,
		IssueImageURL: issues.EvidenceURL(issue.IssueImageRef),
		CreatedAt:     issue.CreatedAt,
		UpdatedAt:     issue.UpdatedAt,
		ClosedAt:      issue.ClosedAt,
	}
	if issue.ResolutionImageRef != nil {
		resp.ResolutionImageURL = issues.EvidenceURL(*issue.ResolutionImageRef)
	}
	return resp
}

func issueListResponse(issues *service.IssueService, items []domain.Issue, filter service.IssueListFilter) dto.IssueListResponse {
	resp := dto.IssueListResponse{
		Items:  make([]dto.IssueResponse, 0, len(items)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for i := range items {
		resp.Items = append(resp.Items, issueResponse(issues, &items[i]))
	}
	return resp
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		MobileNumber: user.MobileNumber,
		Gender:       string(user.Gender),
		DateOfBirth:  user.DateOfBirth,
		Role:         string(user.Role),
		Zone:         user.Zone,
		Verified:     user.Verified,
	}
}

func authResponse(token domain.Token) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Role:      string(token.Role),
		UserID:    token.SubjectID,
		Zone:      token.Zone,
	}
}
