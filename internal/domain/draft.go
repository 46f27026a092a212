package domain

// DraftKind tags the payload held by an OTP ticket.
type DraftKind string

const (
	DraftKindIssueReport         DraftKind = "issue_report"
	DraftKindAccountVerification DraftKind = "account_verification"
)

// Draft is the pending payload awaiting OTP confirmation. Exactly one of
// Report or Account is set, matching Kind.
type Draft struct {
	Kind    DraftKind     `json:"kind"`
	Report  *ReportDraft  `json:"report,omitempty"`
	Account *AccountDraft `json:"account,omitempty"`
}

// ReportDraft is an anonymous issue report before verification.
type ReportDraft struct {
	ReporterName   string    `json:"reporter_name"`
	ReporterEmail  string    `json:"reporter_email"`
	ReporterMobile string    `json:"reporter_mobile"`
	Type           IssueType `json:"issue_type"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Zone           string    `json:"zone"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
}

// AccountDraft references a signed-up but unverified account.
type AccountDraft struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Valid checks the tag matches the populated payload.
func (d Draft) Valid() bool {
	switch d.Kind {
	case DraftKindIssueReport:
		return d.Report != nil && d.Account == nil
	case DraftKindAccountVerification:
		return d.Account != nil && d.Report == nil
	}
	return false
}
