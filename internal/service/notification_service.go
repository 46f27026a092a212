package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/notify"
	"github.com/spot-sort/issue-service/internal/repository"
)

// NotificationService turns issue events into reporter notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		notifier:   notifier,
		logger:     orNop(logger),
	}
}

// RegisterHandlers subscribes to issue events and returns the types it
// listens on.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n.dispatcher == nil {
		return nil
	}
	n.dispatcher.Subscribe(events.EventIssueCreated, n.handleIssueCreated)
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleIssueStatusChanged)
	n.dispatcher.Subscribe(events.EventIssueAssigned, n.handleIssueAssigned)
	return []events.EventType{events.EventIssueCreated, events.EventIssueStatusChanged, events.EventIssueAssigned}
}

func (n *NotificationService) handleIssueCreated(_ context.Context, event events.Event) error {
	n.logger.Info("IssueCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleIssueAssigned(_ context.Context, event events.Event) error {
	n.logger.Info("IssueAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// handleIssueStatusChanged emails the reporter about the new status. The
// reporter is skipped when they made the change themselves.
func (n *NotificationService) handleIssueStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("IssueStatusChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)),
	)
	if payload.ReporterID == nil || *payload.ReporterID == event.Actor.UserID {
		return nil
	}

	reporter, err := n.users.GetByID(ctx, *payload.ReporterID)
	if err != nil {
		return fmt.Errorf("load reporter %s: %w", *payload.ReporterID, err)
	}
	msg := notify.IssueStatusChanged(event.TicketID, string(payload.OldStatus), string(payload.NewStatus))
	if err := n.notifier.Send(ctx, reporter.Email, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("notify reporter: %w", err)
	}
	return nil
}
