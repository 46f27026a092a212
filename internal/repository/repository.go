package repository

import (
	"context"
	"errors"

	"github.com/spot-sort/issue-service/internal/domain"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (email, ticket id) collides.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleStatus is returned when a conditional update finds the issue in
	// a different status than expected.
	ErrStaleStatus = errors.New("issue status changed concurrently")
)

// IssueFilter captures listing predicates. Zero values mean "no constraint".
type IssueFilter struct {
	ReporterID      *string
	Zone            *string
	Statuses        []domain.IssueStatus
	ExcludeStatuses []domain.IssueStatus
	Types           []domain.IssueType
	Limit           int
	Offset          int
}

// DefaultLimit applies when a filter carries no limit.
const DefaultLimit = 50

// UserRepository defines persistence access for accounts. Emails are stored
// normalized, so GetByEmail is a single case-insensitive lookup.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	// Update persists issue only while its stored status equals expected.
	Update(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
}

func normalizedLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
