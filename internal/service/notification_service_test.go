package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/events"
)

func TestStatusChangeNotifiesReporter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reporter := f.account(t, "citizen@example.com", domain.RoleCitizen, "")
	north := f.account(t, "north@example.com", domain.RoleAuthority, "North")
	f.seedIssue(t, "P-000050", "North", reporter, domain.IssueStatusPending)

	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, f.users, f.notifier, nil).RegisterHandlers()
	issues := NewIssueService(IssueDependencies{
		IssueRepo:  f.issues,
		UserRepo:   f.users,
		Blobs:      f.blobs,
		Dispatcher: dispatcher,
		Now:        f.clock.Now,
	})

	_, err := issues.Resolve(ctx, north, "P-000050", pngEvidence)
	require.NoError(t, err)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "citizen@example.com", msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "Awaiting Verification")

	_, err = issues.Verify(ctx, reporter, "P-000050")
	require.NoError(t, err)
	assert.Len(t, f.notifier.messages(), 1, "reporter is not notified of their own change")
}

func TestStatusChangeHandlerRejectsUnknownPayload(t *testing.T) {
	f := newFixture(t)
	svc := NewNotificationService(nil, f.users, f.notifier, nil)

	err := svc.handleIssueStatusChanged(context.Background(), events.Event{Type: events.EventIssueStatusChanged, Payload: "nope"})
	assert.Error(t, err)
}
