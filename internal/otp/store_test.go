package otp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
)

var storeEpoch = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func reportDraft() domain.Draft {
	return domain.Draft{
		Kind: domain.DraftKindIssueReport,
		Report: &domain.ReportDraft{
			ReporterName:  "Ada",
			ReporterEmail: "ada@example.com",
			Type:          domain.IssueTypePothole,
			Description:   "deep pothole",
			Zone:          "Central",
			Lat:           12.97,
			Lng:           77.59,
		},
	}
}

// exerciseStore checks the redemption contract every Store shares.
func exerciseStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	ticket := Ticket{ID: "t-1", Code: "123456", ExpiresAt: storeEpoch.Add(10 * time.Minute), Draft: reportDraft()}

	t.Run("redeem consumes ticket", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		draft, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, ticket.Draft, draft)

		_, err = s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch.Add(time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mismatch keeps ticket", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		_, err := s.Redeem(ctx, "t-1", "654321", domain.DraftKindIssueReport, storeEpoch)
		assert.ErrorIs(t, err, ErrMismatch)
		_, err = s.Redeem(ctx, "t-1", "000000", domain.DraftKindIssueReport, storeEpoch)
		assert.ErrorIs(t, err, ErrMismatch)

		_, err = s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch)
		assert.NoError(t, err)
	})

	t.Run("other kind keeps ticket", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		_, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindAccountVerification, storeEpoch)
		assert.ErrorIs(t, err, ErrWrongKind)

		draft, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch)
		require.NoError(t, err)
		assert.Equal(t, ticket.Draft, draft)
	})

	t.Run("expired ticket is evicted", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		_, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch.Add(11*time.Minute))
		assert.ErrorIs(t, err, ErrExpired)
		_, err = s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch.Add(11*time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("redeemable at exact expiry", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		_, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, ticket.ExpiresAt)
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))
		require.NoError(t, s.Delete(ctx, "t-1"))

		_, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent redeem succeeds once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, ticket))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Redeem(ctx, "t-1", "123456", domain.DraftKindIssueReport, storeEpoch); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, Ticket{ID: "old", ExpiresAt: storeEpoch}))
	require.NoError(t, s.Save(ctx, Ticket{ID: "fresh", ExpiresAt: storeEpoch.Add(time.Hour)}))

	assert.Equal(t, 1, s.Sweep(storeEpoch.Add(time.Minute)))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreRunStopsWithContext(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), Ticket{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}))

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 8)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond, func(n int) { swept <- n })
		close(done)
	}()

	assert.Equal(t, 1, <-swept)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Zero(t, s.Len())
}
