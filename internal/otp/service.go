package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/notify"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// DefaultTTL is how long an issued code stays redeemable.
const DefaultTTL = 10 * time.Minute

const (
	codeMin  = 100000
	codeSpan = 900000
)

// ServiceDependencies wires the ticket service.
type ServiceDependencies struct {
	Store    Store
	Notifier notify.Notifier
	Logger   *zap.Logger
	TTL      time.Duration
	Now      func() time.Time
}

// Service issues codes by email and redeems them for the stored draft.
type Service struct {
	store    Store
	notifier notify.Notifier
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time
	newCode  func() (string, error)
	newID    func() string
}

// NewService constructs the ticket service.
func NewService(deps ServiceDependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    deps.Store,
		notifier: deps.Notifier,
		logger:   logger,
		ttl:      ttl,
		now:      now,
		newCode:  GenerateCode,
		newID:    uuid.NewString,
	}
}

// TTL returns the ticket lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// GenerateCode returns a six digit code drawn uniformly from 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Issue stores draft behind a fresh code, emails the code to destination
// and returns the ticket id. The code itself is never returned. When the
// email cannot be sent the ticket is discarded.
func (s *Service) Issue(ctx context.Context, draft domain.Draft, destination string) (string, error) {
	if !draft.Valid() {
		return "", apperrors.NewValidationError("invalid draft", map[string]any{"kind": draft.Kind})
	}
	if strings.TrimSpace(destination) == "" {
		return "", apperrors.NewValidationError("destination is required", nil)
	}

	code, err := s.newCode()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	ticket := Ticket{
		ID:        s.newID(),
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
		Draft:     draft,
	}
	if err := s.store.Save(ctx, ticket); err != nil {
		return "", apperrors.NewStorageError(err)
	}

	msg := notify.VerificationCode(code, s.ttl)
	if err := s.notifier.Send(ctx, destination, msg.Subject, msg.Body); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), ticket.ID); delErr != nil {
			s.logger.Error("discard undelivered ticket", zap.String("ticket_id", ticket.ID), zap.Error(delErr))
		}
		s.logger.Warn("verification code not delivered",
			zap.String("ticket_id", ticket.ID),
			zap.String("kind", string(draft.Kind)),
			zap.Error(err),
		)
		return "", apperrors.NewNotificationFailed(err)
	}

	s.logger.Info("verification code issued",
		zap.String("ticket_id", ticket.ID),
		zap.String("kind", string(draft.Kind)),
		zap.Time("expires_at", ticket.ExpiresAt),
	)
	return ticket.ID, nil
}

// Redeem exchanges a ticket id and code for its draft of the given kind.
// Success consumes the ticket. A wrong code or a ticket issued for
// another kind leaves it redeemable until it expires.
func (s *Service) Redeem(ctx context.Context, ticketID, code string, kind domain.DraftKind) (domain.Draft, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return domain.Draft{}, apperrors.NewNotFound("verification ticket", nil)
	}

	draft, err := s.store.Redeem(ctx, ticketID, strings.TrimSpace(code), kind, s.now())
	switch {
	case err == nil:
		return draft, nil
	case errors.Is(err, ErrNotFound):
		return domain.Draft{}, apperrors.NewNotFound("verification ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, ErrExpired):
		return domain.Draft{}, apperrors.NewExpired("verification code expired")
	case errors.Is(err, ErrMismatch):
		return domain.Draft{}, apperrors.NewMismatch("verification code does not match")
	case errors.Is(err, ErrWrongKind):
		return domain.Draft{}, apperrors.NewValidationError("verification ticket was issued for a different purpose", map[string]any{"ticket_id": ticketID})
	default:
		return domain.Draft{}, apperrors.NewStorageError(err)
	}
}
