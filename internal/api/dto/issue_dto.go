package dto

import (
	"time"

	"github.com/spot-sort/issue-service/internal/domain"
)

// IssueFormFields are the multipart text fields of an issue report.
type IssueFormFields struct {
	IssueType   string `form:"issueType"`
	Title       string `form:"title"`
	Description string `form:"description"`
	Zone        string `form:"zone"`
	Lat         string `form:"lat"`
	Lng         string `form:"lng"`
}

// AnonymousOTPRequest starts an anonymous report.
type AnonymousOTPRequest struct {
	ReporterName   string           `json:"reporterName"`
	ReporterEmail  string           `json:"reporterEmail"`
	ReporterMobile string           `json:"reporterMobile"`
	IssueType      domain.IssueType `json:"issueType"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Zone           string           `json:"zone"`
	Lat            *float64         `json:"lat"`
	Lng            *float64         `json:"lng"`
}

// AnonymousConfirmFields are the multipart text fields of the confirmation step.
type AnonymousConfirmFields struct {
	TempID     string `form:"tempId"`
	EnteredOTP string `form:"enteredOtp"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status domain.IssueStatus `json:"status"`
}

// AssignRequest payload. Omitted fields are unchanged.
type AssignRequest struct {
	AssignedTo *string `json:"assignedTo"`
	Zone       *string `json:"zone"`
}

// IssueResponse is the full view of an issue.
type IssueResponse struct {
	TicketID           string             `json:"ticketId"`
	IssueType          domain.IssueType   `json:"issueType"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Lat                float64            `json:"lat"`
	Lng                float64            `json:"lng"`
	Zone               string             `json:"zone"`
	Status             domain.IssueStatus `json:"status"`
	ReporterID         *string            `json:"reporterId,omitempty"`
	AssignedTo         *string            `json:"assignedTo,omitempty"`
	IssueImageURL      string             `json:"issueImageUrl"`
	ResolutionImageURL string             `json:"resolutionImageUrl,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	ClosedAt           *time.Time         `json:"closedAt,omitempty"`
}

// TrackResponse is the public view returned by ticket tracking.
type TrackResponse struct {
	TicketID           string             `json:"ticketId"`
	Status             domain.IssueStatus `json:"status"`
	Title              string             `json:"title"`
	IssueImageURL      string             `json:"issueImageUrl"`
	ResolutionImageURL string             `json:"resolutionImageUrl,omitempty"`
}

// AnonymousConfirmResponse reports the stored ticket.
type AnonymousConfirmResponse struct {
	Message          string `json:"message"`
	TicketID         string `json:"ticketId"`
	NotificationSent bool   `json:"notificationSent"`
}

// IssueListResponse wraps a page of issues.
type IssueListResponse struct {
	Items  []IssueResponse `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
