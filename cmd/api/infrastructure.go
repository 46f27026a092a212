package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spot-sort/issue-service/internal/api/http"
	"github.com/spot-sort/issue-service/internal/api/http/handlers"
	"github.com/spot-sort/issue-service/internal/config"
	"github.com/spot-sort/issue-service/internal/notify"
	"github.com/spot-sort/issue-service/internal/otp"
	"github.com/spot-sort/issue-service/internal/persistence"
	"github.com/spot-sort/issue-service/internal/repository"
	"github.com/spot-sort/issue-service/internal/repository/memory"
	"github.com/spot-sort/issue-service/internal/storage"
)

const rateLimitWindow = time.Hour

// infrastructure holds the driver-selected backends.
type infrastructure struct {
	users         repository.UserRepository
	issues        repository.IssueRepository
	tickets       otp.Store
	memoryTickets *otp.MemoryStore
	blobs         storage.BlobStore
	notifier      notify.Notifier
	limiter       httptransport.RateLimiter
	probes        map[string]handlers.Pinger

	closers []func()
}

// Close releases connections in reverse order of creation.
func (i *infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func buildInfrastructure(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*infrastructure, error) {
	infra := &infrastructure{probes: map[string]handlers.Pinger{}}
	ok := false
	defer func() {
		if !ok {
			infra.Close()
		}
	}()

	var mongoConn *persistence.Mongo
	connectMongo := func() (*persistence.Mongo, error) {
		if mongoConn != nil {
			return mongoConn, nil
		}
		m, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			m.Close(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		mongoConn = m
		infra.probes["mongo"] = m
		infra.closers = append(infra.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Close(closeCtx)
		})
		return m, nil
	}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, pg.Close)
		infra.probes["postgres"] = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		infra.users = repository.NewUserRepository(pg.PoolHandle())
		infra.issues = repository.NewIssueRepository(pg.PoolHandle())
	case config.StoreDriverMongo:
		m, err := connectMongo()
		if err != nil {
			return nil, err
		}
		infra.users = repository.NewMongoUserRepository(m.Database)
		infra.issues = repository.NewMongoIssueRepository(m.Database)
	default:
		logger.Warn("using in-memory document store; data is lost on restart")
		infra.users = memory.NewUserRepository()
		infra.issues = memory.NewIssueRepository()
	}

	switch cfg.OTP.Driver {
	case config.OTPDriverRedis:
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		infra.closers = append(infra.closers, rdb.Close)
		infra.probes["redis"] = rdb
		infra.tickets = otp.NewRedisStore(rdb.Client, cfg.OTP.KeyPrefix)
		infra.limiter = httptransport.NewRedisRateLimiter(rdb.Client, cfg.RateLimit.KeyPrefix, cfg.RateLimit.OTPPerHour, rateLimitWindow)
	default:
		infra.memoryTickets = otp.NewMemoryStore()
		infra.tickets = infra.memoryTickets
		infra.limiter = httptransport.NewMemoryRateLimiter(cfg.RateLimit.OTPPerHour, rateLimitWindow)
	}
	if cfg.RateLimit.OTPPerHour <= 0 {
		infra.limiter = nil
	}

	switch cfg.Blob.Driver {
	case config.BlobDriverGridFS:
		m, err := connectMongo()
		if err != nil {
			return nil, err
		}
		blobs, err := storage.NewGridFSStore(m.Database, cfg.Blob.GridFSBucket, cfg.Blob.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		infra.blobs = blobs
	default:
		blobs, err := storage.NewLocalStore(cfg.Blob.UploadDir, cfg.Blob.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		infra.blobs = blobs
	}

	switch cfg.Notification.Driver {
	case config.NotifyDriverSMTP:
		infra.notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			Username: cfg.Notification.SMTPUsername,
			Password: cfg.Notification.SMTPPassword,
			From:     cfg.Notification.EmailFrom,
		})
	case config.NotifyDriverWebhook:
		infra.notifier = notify.NewWebhookNotifier(cfg.Notification.WebhookURL, &http.Client{Timeout: 10 * time.Second})
	default:
		infra.notifier = notify.NewLogNotifier(logger)
	}

	logger.Info("infrastructure ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("otp", cfg.OTP.Driver),
		zap.String("blob", cfg.Blob.Driver),
		zap.String("notify", cfg.Notification.Driver),
	)
	ok = true
	return infra, nil
}
