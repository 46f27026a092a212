package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/access"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/repository"
	"github.com/spot-sort/issue-service/internal/storage"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// IssueService handles queries and lifecycle commands on stored issues.
type IssueService struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	blobs    storage.BlobStore
	maxBytes int
	logger   *zap.Logger
	now      func() time.Time
	events   publisher
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo      repository.IssueRepository
	UserRepo       repository.UserRepository
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	MaxUploadBytes int
	Now            func() time.Time
}

// IssueListFilter describes caller supplied listing filters.
type IssueListFilter struct {
	Statuses []domain.IssueStatus
	Types    []domain.IssueType
	Zone     *string
	Limit    int
	Offset   int
}

// AssignInput changes who handles an issue and where it belongs. Nil
// fields are left unchanged.
type AssignInput struct {
	AssigneeID *string
	Zone       *string
}

// Evidence is an uploaded image before validation.
type Evidence struct {
	Data     []byte
	Filename string
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := orNop(deps.Logger)
	now := orNow(deps.Now)
	return &IssueService{
		issues:   deps.IssueRepo,
		users:    deps.UserRepo,
		blobs:    deps.Blobs,
		maxBytes: deps.MaxUploadBytes,
		logger:   logger,
		now:      now,
		events:   publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// EvidenceURL resolves a stored evidence reference to a public URL.
func (s *IssueService) EvidenceURL(ref string) string {
	if ref == "" || s.blobs == nil {
		return ""
	}
	return s.blobs.URL(ref)
}

// Track returns an issue by ticket id without authentication.
func (s *IssueService) Track(ctx context.Context, ticketID string) (*domain.Issue, error) {
	return s.load(ctx, ticketID)
}

// Get returns an issue the actor may read.
func (s *IssueService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Issue, error) {
	issue, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionRead, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// List returns issues visible to the actor, oldest first.
func (s *IssueService) List(ctx context.Context, actor domain.Actor, filter IssueListFilter) ([]domain.Issue, error) {
	return s.list(ctx, actor, access.ActionList, filter, nil)
}

// Dashboard lists the open work queue for authorities and admins. Closed
// issues are left out unless statuses are requested explicitly.
func (s *IssueService) Dashboard(ctx context.Context, actor domain.Actor, filter IssueListFilter) ([]domain.Issue, error) {
	var exclude []domain.IssueStatus
	if len(filter.Statuses) == 0 {
		exclude = []domain.IssueStatus{domain.IssueStatusClosed}
	}
	return s.list(ctx, actor, access.ActionDashboard, filter, exclude)
}

func (s *IssueService) list(ctx context.Context, actor domain.Actor, action access.Action, filter IssueListFilter, exclude []domain.IssueStatus) ([]domain.Issue, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": st})
		}
	}
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, apperrors.NewValidationError("invalid type filter", map[string]any{"type": t})
		}
	}

	repoFilter, err := access.Scope(actor, action, repository.IssueFilter{
		Zone:            filter.Zone,
		Statuses:        filter.Statuses,
		ExcludeStatuses: exclude,
		Types:           filter.Types,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
	if err != nil {
		return nil, err
	}

	issues, err := s.issues.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return issues, nil
}

// UpdateStatus moves an issue to next. Non-admins are held to the
// lifecycle; admins may set any status, including reopening.
func (s *IssueService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, next domain.IssueStatus) (*domain.Issue, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	issue, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(actor, issue, next); err != nil {
		return nil, err
	}
	if issue.Status == next {
		return issue, nil
	}
	return s.transition(ctx, actor, issue, next)
}

// Verify lets the reporter confirm a fix, closing the issue.
func (s *IssueService) Verify(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Issue, error) {
	issue, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionVerifyClose, issue); err != nil {
		return nil, err
	}
	if issue.Status == domain.IssueStatusClosed {
		return nil, errIssueClosed(issue)
	}
	if issue.Status != domain.IssueStatusAwaitingVerification {
		return nil, apperrors.NewConflict("issue is not awaiting verification",
			map[string]any{"ticket_id": issue.TicketID, "status": issue.Status})
	}
	return s.transition(ctx, actor, issue, domain.IssueStatusClosed)
}

// Assign changes the assignee and, for admins, the zone.
func (s *IssueService) Assign(ctx context.Context, actor domain.Actor, ticketID string, input AssignInput) (*domain.Issue, error) {
	if input.AssigneeID == nil && input.Zone == nil {
		return nil, apperrors.NewValidationError("assignee or zone is required", nil)
	}
	issue, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionAssign, issue); err != nil {
		return nil, err
	}

	oldZone := issue.Zone
	if input.Zone != nil {
		zone := strings.TrimSpace(*input.Zone)
		if zone == "" {
			return nil, apperrors.NewValidationError("zone must not be empty", nil)
		}
		if zone != issue.Zone {
			if err := access.Authorize(actor, access.ActionChangeZone, issue); err != nil {
				return nil, err
			}
			issue.Zone = zone
		}
	}
	if issue.Status == domain.IssueStatusClosed && actor.Role != domain.RoleAdmin {
		return nil, errIssueClosed(issue)
	}

	if input.AssigneeID != nil {
		assigneeID := strings.TrimSpace(*input.AssigneeID)
		if assigneeID == "" {
			issue.AssigneeID = nil
		} else {
			if err := s.checkAssignee(ctx, assigneeID, issue.Zone); err != nil {
				return nil, err
			}
			issue.AssigneeID = &assigneeID
		}
	}

	if err := s.issues.Update(ctx, issue, issue.Status); err != nil {
		return nil, mapIssueStoreError(err, ticketID)
	}
	s.logger.Info("issue assigned",
		zap.String("ticket_id", issue.TicketID),
		zap.String("zone", issue.Zone),
		zap.String("actor_id", actor.UserID),
	)
	s.events.publish(ctx, events.Event{
		Type:     events.EventIssueAssigned,
		TicketID: issue.TicketID,
		Actor:    eventActor(actor),
		Payload: events.IssueAssignedPayload{
			AssigneeID: issue.AssigneeID,
			OldZone:    oldZone,
			NewZone:    issue.Zone,
		},
	})
	return issue, nil
}

// Resolve attaches resolution evidence and moves the issue to Awaiting
// Verification. The new image is removed again when the update fails.
func (s *IssueService) Resolve(ctx context.Context, actor domain.Actor, ticketID string, evidence Evidence) (*domain.Issue, error) {
	issue, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ActionResolve, issue); err != nil {
		return nil, err
	}
	if issue.Status == domain.IssueStatusClosed {
		return nil, errIssueClosed(issue)
	}
	img, err := inspectEvidence(evidence, s.maxBytes)
	if err != nil {
		return nil, err
	}

	ref, err := s.blobs.Put(ctx, img, storage.Meta{Purpose: "resolution", Filename: evidence.Filename})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	previousRef := issue.ResolutionImageRef
	previousStatus := issue.Status
	issue.ResolutionImageRef = &ref
	applyStatus(issue, domain.IssueStatusAwaitingVerification, s.now())

	if err := s.issues.Update(ctx, issue, previousStatus); err != nil {
		s.discardBlob(ctx, ref)
		return nil, mapIssueStoreError(err, ticketID)
	}
	if previousRef != nil {
		s.discardBlob(ctx, *previousRef)
	}

	s.logger.Info("issue resolved",
		zap.String("ticket_id", issue.TicketID),
		zap.String("actor_id", actor.UserID),
	)
	if previousStatus != issue.Status {
		s.publishStatusChange(ctx, actor, issue, previousStatus)
	}
	return issue, nil
}

func (s *IssueService) transition(ctx context.Context, actor domain.Actor, issue *domain.Issue, next domain.IssueStatus) (*domain.Issue, error) {
	previous := issue.Status
	applyStatus(issue, next, s.now())
	if err := s.issues.Update(ctx, issue, previous); err != nil {
		return nil, mapIssueStoreError(err, issue.TicketID)
	}

	s.logger.Info("issue status changed",
		zap.String("ticket_id", issue.TicketID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.UserID),
		zap.String("role", string(actor.Role)),
	)
	s.publishStatusChange(ctx, actor, issue, previous)
	return issue, nil
}

func (s *IssueService) publishStatusChange(ctx context.Context, actor domain.Actor, issue *domain.Issue, previous domain.IssueStatus) {
	s.events.publish(ctx, events.Event{
		Type:     events.EventIssueStatusChanged,
		TicketID: issue.TicketID,
		Actor:    eventActor(actor),
		Payload: events.IssueStatusChangedPayload{
			OldStatus:  previous,
			NewStatus:  issue.Status,
			ReporterID: issue.ReporterID,
			Override:   actor.Role == domain.RoleAdmin && !isValidTransition(previous, issue.Status),
		},
	})
}

func (s *IssueService) checkAssignee(ctx context.Context, assigneeID, zone string) error {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewValidationError("assignee not found", map[string]any{"assignee_id": assigneeID})
	}
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	if assignee.Role != domain.RoleAuthority {
		return apperrors.NewValidationError("assignee must be an authority", map[string]any{"assignee_id": assigneeID})
	}
	if assignee.Zone != domain.ZoneGlobal && assignee.Zone != zone {
		return apperrors.NewValidationError("assignee does not serve this zone",
			map[string]any{"assignee_id": assigneeID, "zone": zone})
	}
	return nil
}

func (s *IssueService) load(ctx context.Context, ticketID string) (*domain.Issue, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	issue, err := s.issues.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, mapIssueStoreError(err, ticketID)
	}
	return issue, nil
}

func (s *IssueService) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn("discard evidence", zap.String("ref", ref), zap.Error(err))
	}
}

// inspectEvidence validates an upload as an evidence image.
func inspectEvidence(evidence Evidence, maxBytes int) (storage.Image, error) {
	img, err := storage.Inspect(evidence.Data, maxBytes)
	switch {
	case err == nil:
		return img, nil
	case errors.Is(err, storage.ErrEmpty):
		return storage.Image{}, apperrors.NewValidationError("evidence image is required", nil)
	case errors.Is(err, storage.ErrTooLarge):
		return storage.Image{}, apperrors.NewValidationError("evidence image is too large",
			map[string]any{"max_bytes": effectiveMaxBytes(maxBytes)})
	case errors.Is(err, storage.ErrUnsupportedType):
		return storage.Image{}, apperrors.NewValidationError("evidence must be a jpeg, png or gif image", nil)
	default:
		return storage.Image{}, apperrors.NewValidationError(err.Error(), nil)
	}
}

func effectiveMaxBytes(maxBytes int) int {
	if maxBytes <= 0 {
		return storage.DefaultMaxBytes
	}
	return maxBytes
}
