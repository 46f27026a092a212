package events

import (
	"time"

	"github.com/spot-sort/issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventIssueAssigned      EventType = "issue_assigned"
)

// IssueEventTypes lists every event the issue services publish.
var IssueEventTypes = []EventType{EventIssueCreated, EventIssueStatusChanged, EventIssueAssigned}

// Actor encapsulates actor metadata for an event. UserID is empty for
// anonymous submissions.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	Type      domain.IssueType `json:"issue_type"`
	Zone      string           `json:"zone"`
	Title     string           `json:"title"`
	Anonymous bool             `json:"anonymous"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus  domain.IssueStatus `json:"old_status"`
	NewStatus  domain.IssueStatus `json:"new_status"`
	ReporterID *string            `json:"reporter_id,omitempty"`
	Override   bool               `json:"override,omitempty"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	OldZone    string  `json:"old_zone"`
	NewZone    string  `json:"new_zone"`
}
