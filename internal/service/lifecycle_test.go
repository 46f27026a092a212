package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/events"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

var allStatuses = []domain.IssueStatus{
	domain.IssueStatusPending,
	domain.IssueStatusInProgress,
	domain.IssueStatusAwaitingVerification,
	domain.IssueStatusClosed,
}

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]domain.IssueStatus]bool{
		{domain.IssueStatusPending, domain.IssueStatusInProgress}:              true,
		{domain.IssueStatusPending, domain.IssueStatusAwaitingVerification}:    true,
		{domain.IssueStatusInProgress, domain.IssueStatusAwaitingVerification}: true,
		{domain.IssueStatusAwaitingVerification, domain.IssueStatusClosed}:     true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]domain.IssueStatus{from, to}], isValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAuthorityTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	citizen := f.account(t, "citizen@example.com", domain.RoleCitizen, "")
	authority := f.account(t, "north@example.com", domain.RoleAuthority, "North")

	f.seedIssue(t, "P-000001", "North", citizen, domain.IssueStatusPending)

	issue, err := f.issueSvc.UpdateStatus(ctx, authority, "P-000001", domain.IssueStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusInProgress, issue.Status)

	_, err = f.issueSvc.UpdateStatus(ctx, authority, "P-000001", domain.IssueStatusPending)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "got %v", err)

	_, err = f.issueSvc.UpdateStatus(ctx, authority, "P-000001", domain.IssueStatusClosed)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "got %v", err)

	issue, err = f.issueSvc.UpdateStatus(ctx, authority, "P-000001", domain.IssueStatusAwaitingVerification)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusAwaitingVerification, issue.Status)

	changes := f.recorded.ofType(events.EventIssueStatusChanged)
	require.Len(t, changes, 2)
	payload := changes[1].Payload.(events.IssueStatusChangedPayload)
	assert.Equal(t, domain.IssueStatusInProgress, payload.OldStatus)
	assert.Equal(t, domain.IssueStatusAwaitingVerification, payload.NewStatus)
}

func TestClosedIsTerminalForNonAdmins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	citizen := f.account(t, "citizen@example.com", domain.RoleCitizen, "")
	authority := f.account(t, "north@example.com", domain.RoleAuthority, "North")
	f.seedIssue(t, "P-000002", "North", citizen, domain.IssueStatusClosed)

	for _, next := range allStatuses {
		_, err := f.issueSvc.UpdateStatus(ctx, authority, "P-000002", next)
		require.Error(t, err)
		assert.False(t, apperrors.HasCode(err, apperrors.CodeValidation))
	}
	_, err := f.issueSvc.UpdateStatus(ctx, authority, "P-000002", domain.IssueStatusInProgress)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.issueSvc.Verify(ctx, citizen, "P-000002")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.issueSvc.Resolve(ctx, authority, "P-000002", pngEvidence)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	assignee := authority.UserID
	_, err = f.issueSvc.Assign(ctx, authority, "P-000002", AssignInput{AssigneeID: &assignee})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	assert.Equal(t, domain.IssueStatusClosed, f.storedStatus(t, "P-000002"))
	assert.Zero(t, f.blobs.count())
}

func TestAdminOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	citizen := f.account(t, "citizen@example.com", domain.RoleCitizen, "")
	admin := f.account(t, "admin@example.com", domain.RoleAdmin, "")
	f.seedIssue(t, "P-000003", "South", citizen, domain.IssueStatusClosed)

	issue, err := f.issueSvc.UpdateStatus(ctx, admin, "P-000003", domain.IssueStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusPending, issue.Status)
	assert.Nil(t, issue.ClosedAt)

	issue, err = f.issueSvc.UpdateStatus(ctx, admin, "P-000003", domain.IssueStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, issue.ClosedAt)
	assert.Equal(t, f.clock.Now(), *issue.ClosedAt)

	changes := f.recorded.ofType(events.EventIssueStatusChanged)
	require.Len(t, changes, 2)
	assert.True(t, changes[0].Payload.(events.IssueStatusChangedPayload).Override)
	assert.True(t, changes[1].Payload.(events.IssueStatusChangedPayload).Override)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, "admin@example.com", domain.RoleAdmin, "")

	_, err := f.issueSvc.UpdateStatus(context.Background(), admin, "P-1", domain.IssueStatus("Done"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
