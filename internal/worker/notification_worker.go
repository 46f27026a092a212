package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/service"
)

// Counter receives one increment per published event, keyed by event type.
type Counter interface {
	Incr(name string)
}

// StartNotificationWorker subscribes reporter notifications to issue
// events. It returns the event types now being handled.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) []events.EventType {
	if notificationService == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	types := notificationService.RegisterHandlers()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	logger.Info("notification worker subscribed", zap.Strings("event_types", names))
	return types
}

// StartEventCounter counts every issue event under its type name.
func StartEventCounter(dispatcher events.Dispatcher, counter Counter) {
	if dispatcher == nil || counter == nil {
		return
	}
	events.SubscribeAll(dispatcher, func(_ context.Context, e events.Event) error {
		counter.Incr(string(e.Type))
		return nil
	}, events.IssueEventTypes...)
}
