package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/repository"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

var (
	citizen  = domain.Actor{UserID: "c-1", Role: domain.RoleCitizen}
	stranger = domain.Actor{UserID: "c-2", Role: domain.RoleCitizen}
	north    = domain.Actor{UserID: "a-1", Role: domain.RoleAuthority, Zone: "North"}
	global   = domain.Actor{UserID: "a-2", Role: domain.RoleAuthority, Zone: domain.ZoneGlobal}
	admin    = domain.Actor{UserID: "ad-1", Role: domain.RoleAdmin}
)

func issueIn(zone string) *domain.Issue {
	reporter := "c-1"
	return &domain.Issue{TicketID: "T", Zone: zone, ReporterID: &reporter, Status: domain.IssueStatusPending}
}

func TestAuthorize(t *testing.T) {
	southIssue := issueIn("South")
	northIssue := issueIn("North")

	cases := []struct {
		name   string
		actor  domain.Actor
		action Action
		issue  *domain.Issue
		allow  bool
	}{
		{"citizen creates", citizen, ActionCreate, nil, true},
		{"citizen reads own", citizen, ActionRead, southIssue, true},
		{"citizen reads other", stranger, ActionRead, southIssue, false},
		{"citizen verifies own", citizen, ActionVerifyClose, southIssue, true},
		{"citizen verifies other", stranger, ActionVerifyClose, southIssue, false},
		{"citizen cannot start work", citizen, ActionStartWork, southIssue, false},
		{"citizen cannot see dashboard", citizen, ActionDashboard, nil, false},
		{"authority cannot create", north, ActionCreate, nil, false},
		{"authority resolves in zone", north, ActionResolve, northIssue, true},
		{"authority resolves other zone", north, ActionResolve, southIssue, false},
		{"authority starts work other zone", north, ActionStartWork, southIssue, false},
		{"authority assigns in zone", north, ActionAssign, northIssue, true},
		{"authority cannot change zone", north, ActionChangeZone, northIssue, false},
		{"authority cannot verify close", north, ActionVerifyClose, northIssue, false},
		{"authority cannot override", north, ActionOverrideStatus, northIssue, false},
		{"global authority anywhere", global, ActionResolve, southIssue, true},
		{"admin overrides", admin, ActionOverrideStatus, southIssue, true},
		{"admin changes zone", admin, ActionChangeZone, southIssue, true},
		{"unknown role", domain.Actor{Role: "guest"}, ActionRead, northIssue, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.action, tc.issue)
			if tc.allow {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "got %v", err)
		})
	}
}

func TestScope(t *testing.T) {
	south := "South"
	requested := repository.IssueFilter{Zone: &south, Limit: 10}

	got, err := Scope(north, ActionList, requested)
	require.NoError(t, err)
	require.NotNil(t, got.Zone)
	assert.Equal(t, "North", *got.Zone)
	assert.Equal(t, 10, got.Limit)

	got, err = Scope(citizen, ActionList, repository.IssueFilter{})
	require.NoError(t, err)
	require.NotNil(t, got.ReporterID)
	assert.Equal(t, "c-1", *got.ReporterID)

	got, err = Scope(global, ActionDashboard, requested)
	require.NoError(t, err)
	assert.Equal(t, &south, got.Zone)

	got, err = Scope(admin, ActionList, repository.IssueFilter{})
	require.NoError(t, err)
	assert.Nil(t, got.Zone)
	assert.Nil(t, got.ReporterID)

	_, err = Scope(citizen, ActionDashboard, repository.IssueFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
