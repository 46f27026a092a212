package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/repository"
)

// IssueRepository is an in-memory repository.IssueRepository.
type IssueRepository struct {
	mu     sync.RWMutex
	issues map[string]domain.Issue
	now    func() time.Time
}

// NewIssueRepository returns an empty repository.
func NewIssueRepository() *IssueRepository {
	return &IssueRepository{issues: make(map[string]domain.Issue), now: time.Now}
}

func (r *IssueRepository) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[issue.TicketID]; exists {
		return repository.ErrDuplicate
	}
	now := r.now()
	issue.ID = uuid.NewString()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	r.issues[issue.TicketID] = cloneIssue(*issue)
	return nil
}

func (r *IssueRepository) Update(_ context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.issues[issue.TicketID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStaleStatus
	}
	stored.Zone = issue.Zone
	stored.Status = issue.Status
	stored.ResolutionImageRef = issue.ResolutionImageRef
	stored.AssigneeID = issue.AssigneeID
	stored.ClosedAt = issue.ClosedAt
	stored.UpdatedAt = r.now()
	issue.UpdatedAt = stored.UpdatedAt
	r.issues[issue.TicketID] = cloneIssue(stored)
	return nil
}

func (r *IssueRepository) GetByTicketID(_ context.Context, ticketID string) (*domain.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.issues[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneIssue(issue)
	return &out, nil
}

func (r *IssueRepository) List(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	r.mu.RLock()
	matched := make([]domain.Issue, 0, len(r.issues))
	for _, issue := range r.issues {
		if matches(issue, filter) {
			matched = append(matched, cloneIssue(issue))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TicketID < matched[j].TicketID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Issue{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matches(issue domain.Issue, f repository.IssueFilter) bool {
	if f.ReporterID != nil && (issue.ReporterID == nil || *issue.ReporterID != *f.ReporterID) {
		return false
	}
	if f.Zone != nil && issue.Zone != *f.Zone {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, issue.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && containsStatus(f.ExcludeStatuses, issue.Status) {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == issue.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.IssueStatus, s domain.IssueStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneIssue(in domain.Issue) domain.Issue {
	out := in
	out.ReporterID = cloneString(in.ReporterID)
	out.ResolutionImageRef = cloneString(in.ResolutionImageRef)
	out.AssigneeID = cloneString(in.AssigneeID)
	if in.ClosedAt != nil {
		t := *in.ClosedAt
		out.ClosedAt = &t
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
