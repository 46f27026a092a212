package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/otp"
)

// StartTicketSweeper evicts expired in-memory OTP tickets every interval
// until ctx is cancelled. Wait on the returned WaitGroup for shutdown.
func StartTicketSweeper(ctx context.Context, store *otp.MemoryStore, interval time.Duration, logger *zap.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if store == nil {
		return &wg
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("otp ticket sweeper started", zap.Duration("interval", interval))
		store.Run(ctx, interval, func(removed int) {
			if removed > 0 {
				logger.Debug("expired otp tickets evicted", zap.Int("count", removed))
			}
		})
		logger.Info("otp ticket sweeper stopped")
	}()
	return &wg
}
