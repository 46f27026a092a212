package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/spot-sort/issue-service/internal/access"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/repository"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// allowedTransitions lists the moves open to non-admin actors. Admins may
// set any status.
var allowedTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.IssueStatusPending:              {domain.IssueStatusInProgress, domain.IssueStatusAwaitingVerification},
	domain.IssueStatusInProgress:           {domain.IssueStatusAwaitingVerification},
	domain.IssueStatusAwaitingVerification: {domain.IssueStatusClosed},
	domain.IssueStatusClosed:               {},
}

func isValidTransition(current, next domain.IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// transitionAction is the permission a non-admin needs to move an issue
// into next.
func transitionAction(next domain.IssueStatus) access.Action {
	switch next {
	case domain.IssueStatusInProgress:
		return access.ActionStartWork
	case domain.IssueStatusAwaitingVerification:
		return access.ActionAwaitVerification
	case domain.IssueStatusClosed:
		return access.ActionVerifyClose
	default:
		return access.ActionOverrideStatus
	}
}

// checkTransition authorizes actor to move issue into next. Admins bypass
// the transition table; everyone else is held to it and never touches a
// closed issue.
func checkTransition(actor domain.Actor, issue *domain.Issue, next domain.IssueStatus) error {
	if actor.Role == domain.RoleAdmin {
		return access.Authorize(actor, access.ActionOverrideStatus, issue)
	}
	if err := access.Authorize(actor, transitionAction(next), issue); err != nil {
		return err
	}
	if issue.Status == domain.IssueStatusClosed {
		return errIssueClosed(issue)
	}
	if !isValidTransition(issue.Status, next) {
		return apperrors.NewConflict(
			fmt.Sprintf("cannot move issue from %s to %s", issue.Status, next),
			map[string]any{"ticket_id": issue.TicketID, "status": issue.Status},
		)
	}
	return nil
}

// applyStatus sets the status and keeps closed_at in step with it.
func applyStatus(issue *domain.Issue, next domain.IssueStatus, now time.Time) {
	issue.Status = next
	if next == domain.IssueStatusClosed {
		closedAt := now
		issue.ClosedAt = &closedAt
		return
	}
	issue.ClosedAt = nil
}

func errIssueClosed(issue *domain.Issue) error {
	return apperrors.NewConflict("issue is closed", map[string]any{"ticket_id": issue.TicketID})
}

// mapIssueStoreError translates repository failures for issue operations.
func mapIssueStoreError(err error, ticketID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("issue", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrStaleStatus):
		return apperrors.NewConflict("issue was modified concurrently", map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.NewStorageError(err)
	}
}
