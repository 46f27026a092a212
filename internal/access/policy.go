// Package access decides which actor may perform which operation on an
// issue, and narrows listings to what an actor may see.
package access

import (
	"fmt"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/repository"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// Action is an operation subject to authorization.
type Action string

const (
	ActionCreate            Action = "create"
	ActionRead              Action = "read"
	ActionList              Action = "list"
	ActionDashboard         Action = "dashboard"
	ActionStartWork         Action = "start_work"
	ActionAwaitVerification Action = "await_verification"
	ActionResolve           Action = "resolve"
	ActionAssign            Action = "assign"
	ActionChangeZone        Action = "change_zone"
	ActionVerifyClose       Action = "verify_close"
	ActionOverrideStatus    Action = "override_status"
)

type scope int

const (
	scopeNone scope = iota
	scopeOwn
	scopeZone
	scopeGlobal
)

var rules = map[domain.Role]map[Action]scope{
	domain.RoleCitizen: {
		ActionCreate:      scopeGlobal,
		ActionRead:        scopeOwn,
		ActionList:        scopeOwn,
		ActionVerifyClose: scopeOwn,
	},
	domain.RoleAuthority: {
		ActionRead:              scopeZone,
		ActionList:              scopeZone,
		ActionDashboard:         scopeZone,
		ActionStartWork:         scopeZone,
		ActionAwaitVerification: scopeZone,
		ActionResolve:           scopeZone,
		ActionAssign:            scopeZone,
	},
	domain.RoleAdmin: {
		ActionCreate:            scopeGlobal,
		ActionRead:              scopeGlobal,
		ActionList:              scopeGlobal,
		ActionDashboard:         scopeGlobal,
		ActionStartWork:         scopeGlobal,
		ActionAwaitVerification: scopeGlobal,
		ActionResolve:           scopeGlobal,
		ActionAssign:            scopeGlobal,
		ActionChangeZone:        scopeGlobal,
		ActionVerifyClose:       scopeGlobal,
		ActionOverrideStatus:    scopeGlobal,
	},
}

// Authorize returns a Forbidden error unless actor may perform action on
// issue. issue may be nil for actions that do not target one.
func Authorize(actor domain.Actor, action Action, issue *domain.Issue) error {
	sc := rules[actor.Role][action]
	switch sc {
	case scopeGlobal:
		return nil
	case scopeNone:
		return apperrors.NewForbidden(fmt.Sprintf("role %q may not %s", actor.Role, action))
	}

	if issue == nil {
		return nil
	}
	switch sc {
	case scopeOwn:
		if !Owns(actor, issue) {
			return apperrors.NewForbidden("issue belongs to another reporter")
		}
	case scopeZone:
		if !InZone(actor, issue.Zone) {
			return apperrors.NewForbidden(fmt.Sprintf("issue is outside zone %q", actor.Zone))
		}
	}
	return nil
}

// Can is Authorize as a predicate.
func Can(actor domain.Actor, action Action, issue *domain.Issue) bool {
	return Authorize(actor, action, issue) == nil
}

// Owns reports whether actor reported issue.
func Owns(actor domain.Actor, issue *domain.Issue) bool {
	return issue.ReporterID != nil && actor.UserID != "" && *issue.ReporterID == actor.UserID
}

// InZone reports whether an authority's zone covers zone.
func InZone(actor domain.Actor, zone string) bool {
	return actor.Zone == domain.ZoneGlobal || actor.Zone == zone
}

// Scope injects the predicate that limits a listing to what actor may see.
// Caller supplied zone or reporter values are overridden where the role
// requires it.
func Scope(actor domain.Actor, action Action, filter repository.IssueFilter) (repository.IssueFilter, error) {
	if err := Authorize(actor, action, nil); err != nil {
		return filter, err
	}

	switch rules[actor.Role][action] {
	case scopeOwn:
		id := actor.UserID
		filter.ReporterID = &id
	case scopeZone:
		if actor.Zone != domain.ZoneGlobal {
			zone := actor.Zone
			filter.Zone = &zone
		}
	}
	return filter, nil
}
