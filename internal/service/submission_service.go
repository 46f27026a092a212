package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/access"
	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/notify"
	"github.com/spot-sort/issue-service/internal/repository"
	"github.com/spot-sort/issue-service/internal/storage"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// DefaultAnonymousZone is where anonymous reports land when no zone is given.
const DefaultAnonymousZone = "Central"

const maxDerivedTitle = 50

// anonymousIDAttempts bounds how many ticket ids a confirmation tries
// before giving up on a collision.
const anonymousIDAttempts = 3

// TicketIssuer issues and redeems OTP tickets.
type TicketIssuer interface {
	Issue(ctx context.Context, draft domain.Draft, destination string) (string, error)
	Redeem(ctx context.Context, ticketID, code string, kind domain.DraftKind) (domain.Draft, error)
}

// SubmissionService turns citizen reports into stored issues.
type SubmissionService struct {
	issues      repository.IssueRepository
	users       repository.UserRepository
	blobs       storage.BlobStore
	tickets     TicketIssuer
	credentials *auth.CredentialStore
	notifier    notify.Notifier
	maxBytes    int
	defaultZone string
	logger      *zap.Logger
	now         func() time.Time
	suffix      func() int
	events      publisher
}

// SubmissionDependencies bundles collaborators for the submission service.
type SubmissionDependencies struct {
	IssueRepo            repository.IssueRepository
	UserRepo             repository.UserRepository
	Blobs                storage.BlobStore
	Tickets              TicketIssuer
	Credentials          *auth.CredentialStore
	Notifier             notify.Notifier
	Dispatcher           events.Dispatcher
	Logger               *zap.Logger
	MaxUploadBytes       int
	DefaultAnonymousZone string
	Now                  func() time.Time
}

// ReportInput holds the issue fields of a report.
type ReportInput struct {
	Type        domain.IssueType
	Title       string
	Description string
	Zone        string
	Location    domain.Location
}

// AnonymousReportInput is a report from someone without an account.
type AnonymousReportInput struct {
	ReporterName   string
	ReporterEmail  string
	ReporterMobile string
	Report         ReportInput
}

// ConfirmResult is the outcome of a confirmed anonymous report.
type ConfirmResult struct {
	Issue            *domain.Issue
	NotificationSent bool
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDependencies) *SubmissionService {
	logger := orNop(deps.Logger)
	now := orNow(deps.Now)
	zone := strings.TrimSpace(deps.DefaultAnonymousZone)
	if zone == "" {
		zone = DefaultAnonymousZone
	}
	return &SubmissionService{
		issues:      deps.IssueRepo,
		users:       deps.UserRepo,
		blobs:       deps.Blobs,
		tickets:     deps.Tickets,
		credentials: deps.Credentials,
		notifier:    deps.Notifier,
		maxBytes:    deps.MaxUploadBytes,
		defaultZone: zone,
		logger:      logger,
		now:         now,
		suffix:      func() int { return 100 + rand.Intn(900) },
		events:      publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// SubmitAuthenticated stores a report from a signed-in citizen or admin.
// The evidence image is written first and removed again if the issue
// cannot be persisted.
func (s *SubmissionService) SubmitAuthenticated(ctx context.Context, actor domain.Actor, input ReportInput, evidence Evidence) (*domain.Issue, error) {
	if err := access.Authorize(actor, access.ActionCreate, nil); err != nil {
		return nil, err
	}
	report, err := normalizeReport(input)
	if err != nil {
		return nil, err
	}
	if report.Title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if report.Zone == "" {
		return nil, apperrors.NewValidationError("zone is required", map[string]any{"field": "zone"})
	}
	img, err := inspectEvidence(evidence, s.maxBytes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reporterID := actor.UserID
	issue := &domain.Issue{
		TicketID:    fmt.Sprintf("TICKET-%d-%d", now.UnixMilli(), s.suffix()),
		ReporterID:  &reporterID,
		Type:        report.Type,
		Title:       report.Title,
		Description: report.Description,
		Location:    report.Location,
		Zone:        report.Zone,
		Status:      domain.IssueStatusPending,
	}
	if err := s.persistWithEvidence(ctx, issue, img, evidence.Filename); err != nil {
		return nil, err
	}

	s.logger.Info("issue reported",
		zap.String("ticket_id", issue.TicketID),
		zap.String("reporter_id", reporterID),
		zap.String("zone", issue.Zone),
	)
	s.publishCreated(ctx, eventActor(actor), issue, false)
	return issue, nil
}

// RequestAnonymous validates an anonymous report and emails a code to the
// reporter. Only the OTP ticket id is returned.
func (s *SubmissionService) RequestAnonymous(ctx context.Context, input AnonymousReportInput) (string, error) {
	name := strings.TrimSpace(input.ReporterName)
	email := domain.NormalizeEmail(input.ReporterEmail)
	mobile := strings.TrimSpace(input.ReporterMobile)
	switch {
	case name == "":
		return "", apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	case !validEmail(email):
		return "", apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	case mobile == "":
		return "", apperrors.NewValidationError("mobile number is required", map[string]any{"field": "mobileNumber"})
	}

	report, err := normalizeReport(input.Report)
	if err != nil {
		return "", err
	}
	if err := s.checkReporterEmail(ctx, email); err != nil {
		return "", err
	}
	if report.Title == "" {
		report.Title = deriveTitle(report.Description)
	}
	if report.Zone == "" {
		report.Zone = s.defaultZone
	}

	draft := domain.Draft{
		Kind: domain.DraftKindIssueReport,
		Report: &domain.ReportDraft{
			ReporterName:   name,
			ReporterEmail:  email,
			ReporterMobile: mobile,
			Type:           report.Type,
			Title:          report.Title,
			Description:    report.Description,
			Zone:           report.Zone,
			Lat:            report.Location.Lat,
			Lng:            report.Location.Lng,
		},
	}
	return s.tickets.Issue(ctx, draft, email)
}

// ConfirmAnonymous redeems the emailed code and stores the report under a
// citizen account for the reporter's email, creating one if needed.
// A failed confirmation email does not undo the stored issue.
func (s *SubmissionService) ConfirmAnonymous(ctx context.Context, ticketID, code string, evidence Evidence) (*ConfirmResult, error) {
	img, err := inspectEvidence(evidence, s.maxBytes)
	if err != nil {
		return nil, err
	}
	ref, err := s.blobs.Put(ctx, img, storage.Meta{Purpose: "issue", Filename: evidence.Filename})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	draft, err := s.tickets.Redeem(ctx, ticketID, code, domain.DraftKindIssueReport)
	if err != nil {
		s.discardBlob(ctx, ref)
		return nil, err
	}
	if draft.Report == nil {
		s.discardBlob(ctx, ref)
		return nil, apperrors.NewValidationError("ticket does not hold an issue report", nil)
	}
	report := draft.Report

	reporter, err := s.findOrCreateReporter(ctx, report)
	if err != nil {
		s.discardBlob(ctx, ref)
		return nil, err
	}

	reporterID := reporter.ID
	issue := &domain.Issue{
		ReporterID:    &reporterID,
		Type:          report.Type,
		Title:         report.Title,
		Description:   report.Description,
		Location:      domain.Location{Lat: report.Lat, Lng: report.Lng},
		Zone:          report.Zone,
		Status:        domain.IssueStatusPending,
		IssueImageRef: ref,
	}
	if err := s.createAnonymous(ctx, issue); err != nil {
		s.discardBlob(ctx, ref)
		return nil, err
	}

	result := &ConfirmResult{Issue: issue, NotificationSent: true}
	msg := notify.IssueReported(issue.TicketID)
	if err := s.notifier.Send(ctx, reporter.Email, msg.Subject, msg.Body); err != nil {
		result.NotificationSent = false
		s.logger.Warn("issue confirmation not delivered",
			zap.String("ticket_id", issue.TicketID),
			zap.Error(err),
		)
	}

	s.logger.Info("anonymous issue confirmed",
		zap.String("ticket_id", issue.TicketID),
		zap.String("reporter_id", reporterID),
		zap.String("zone", issue.Zone),
	)
	s.publishCreated(ctx, events.Actor{UserID: reporterID, Role: domain.RoleCitizen}, issue, true)
	return result, nil
}

// createAnonymous stores issue under a short ticket id, moving on to the
// next millisecond when the id is taken.
func (s *SubmissionService) createAnonymous(ctx context.Context, issue *domain.Issue) error {
	now := s.now()
	var err error
	for attempt := 0; attempt < anonymousIDAttempts; attempt++ {
		issue.TicketID = anonymousTicketID(issue.Type, now.Add(time.Duration(attempt)*time.Millisecond))
		err = s.issues.Create(ctx, issue)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.logger.Warn("anonymous ticket id taken",
			zap.String("ticket_id", issue.TicketID),
			zap.Int("attempt", attempt+1),
		)
	}
	return mapIssueStoreError(err, issue.TicketID)
}

// checkReporterEmail rejects emails that belong to staff accounts; an
// anonymous report is always filed by a citizen.
func (s *SubmissionService) checkReporterEmail(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return apperrors.NewStorageError(err)
	}
	return citizenReporter(user)
}

func citizenReporter(user *domain.User) error {
	if user.Role != domain.RoleCitizen {
		return apperrors.NewConflict("email belongs to a staff account", map[string]any{"field": "email"})
	}
	return nil
}

func (s *SubmissionService) findOrCreateReporter(ctx context.Context, report *domain.ReportDraft) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, report.ReporterEmail)
	if err == nil {
		if err := citizenReporter(user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewStorageError(err)
	}

	secret, err := auth.RandomSecret()
	if err != nil {
		return nil, apperrors.NewCredentialError(err)
	}
	hash, err := s.credentials.Hash(secret)
	if err != nil {
		return nil, apperrors.NewCredentialError(err)
	}

	user = &domain.User{
		Name:         report.ReporterName,
		Email:        report.ReporterEmail,
		MobileNumber: report.ReporterMobile,
		PasswordHash: hash,
		Role:         domain.RoleCitizen,
	}
	err = s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		// Created concurrently by another confirmation for the same email.
		existing, getErr := s.users.GetByEmail(ctx, report.ReporterEmail)
		if getErr != nil {
			return nil, apperrors.NewStorageError(getErr)
		}
		if err := citizenReporter(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("reporter account created", zap.String("user_id", user.ID))
	return user, nil
}

func (s *SubmissionService) persistWithEvidence(ctx context.Context, issue *domain.Issue, img storage.Image, filename string) error {
	ref, err := s.blobs.Put(ctx, img, storage.Meta{Purpose: "issue", Filename: filename})
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	issue.IssueImageRef = ref
	if err := s.issues.Create(ctx, issue); err != nil {
		s.discardBlob(ctx, ref)
		return mapIssueStoreError(err, issue.TicketID)
	}
	return nil
}

func (s *SubmissionService) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn("discard evidence", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *SubmissionService) publishCreated(ctx context.Context, actor events.Actor, issue *domain.Issue, anonymous bool) {
	s.events.publish(ctx, events.Event{
		Type:     events.EventIssueCreated,
		TicketID: issue.TicketID,
		Actor:    actor,
		Payload: events.IssueCreatedPayload{
			Type:      issue.Type,
			Zone:      issue.Zone,
			Title:     issue.Title,
			Anonymous: anonymous,
		},
	})
}

// normalizeReport trims and validates the fields every report needs.
func normalizeReport(input ReportInput) (ReportInput, error) {
	out := ReportInput{
		Type:        domain.IssueType(strings.ToLower(strings.TrimSpace(string(input.Type)))),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Zone:        strings.TrimSpace(input.Zone),
		Location:    input.Location,
	}
	if !out.Type.Valid() {
		return out, apperrors.NewValidationError("issue type must be pothole or waste", map[string]any{"field": "issueType"})
	}
	if out.Description == "" {
		return out, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	}
	if !out.Location.Valid() {
		return out, apperrors.NewValidationError("a valid location is required", map[string]any{"field": "location"})
	}
	return out, nil
}

func deriveTitle(description string) string {
	if utf8.RuneCountInString(description) <= maxDerivedTitle {
		return description
	}
	runes := []rune(description)
	return strings.TrimSpace(string(runes[:maxDerivedTitle]))
}

// anonymousTicketID is P- or W- followed by the last six digits of the
// millisecond clock.
func anonymousTicketID(t domain.IssueType, now time.Time) string {
	prefix := "P"
	if t == domain.IssueTypeWaste {
		prefix = "W"
	}
	return fmt.Sprintf("%s-%06d", prefix, now.UnixMilli()%1_000_000)
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
