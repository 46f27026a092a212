package domain

import "time"

// IssueType enumerates reportable problems.
type IssueType string

const (
	IssueTypePothole IssueType = "pothole"
	IssueTypeWaste   IssueType = "waste"
)

// Valid reports whether t is a known issue type.
func (t IssueType) Valid() bool {
	return t == IssueTypePothole || t == IssueTypeWaste
}

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusPending              IssueStatus = "Pending"
	IssueStatusInProgress           IssueStatus = "In Progress"
	IssueStatusAwaitingVerification IssueStatus = "Awaiting Verification"
	IssueStatusClosed               IssueStatus = "Closed"
)

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusPending, IssueStatusInProgress, IssueStatusAwaitingVerification, IssueStatusClosed:
		return true
	}
	return false
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate is within range.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Issue is the aggregate for a civic problem report.
type Issue struct {
	ID                 string
	TicketID           string
	ReporterID         *string
	Type               IssueType
	Title              string
	Description        string
	Location           Location
	Zone               string
	Status             IssueStatus
	IssueImageRef      string
	ResolutionImageRef *string
	AssigneeID         *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}
