package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the logger instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a development notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrInvalidDestination
	}
	n.logger.Info("notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
