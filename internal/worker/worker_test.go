package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/notify"
	"github.com/spot-sort/issue-service/internal/otp"
	"github.com/spot-sort/issue-service/internal/repository/memory"
	"github.com/spot-sort/issue-service/internal/service"
)

func TestTicketSweeperEvictsAndStops(t *testing.T) {
	store := otp.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), otp.Ticket{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, store.Save(context.Background(), otp.Ticket{ID: "fresh", ExpiresAt: time.Now().Add(time.Hour)}))

	ctx, cancel := context.WithCancel(context.Background())
	wg := StartTicketSweeper(ctx, store, 5*time.Millisecond, nil)

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestTicketSweeperWithoutStore(t *testing.T) {
	wg := StartTicketSweeper(context.Background(), nil, time.Millisecond, nil)
	wg.Wait()
}

type countingSink struct {
	counts map[string]int
}

func (c *countingSink) Incr(name string) {
	c.counts[name]++
}

func TestNotificationWorkerSubscribesIssueEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, memory.NewUserRepository(), notify.NewLogNotifier(zap.NewNop()), zap.NewNop())

	types := StartNotificationWorker(notifications, nil)
	assert.ElementsMatch(t, events.IssueEventTypes, types)
	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventIssueCreated, TicketID: "P-000001"}))

	assert.Nil(t, StartNotificationWorker(nil, nil))
}

func TestEventCounterCountsByType(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	sink := &countingSink{counts: map[string]int{}}
	StartEventCounter(dispatcher, sink)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventIssueCreated}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventIssueCreated}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventIssueAssigned}))

	assert.Equal(t, map[string]int{"issue_created": 2, "issue_assigned": 1}, sink.counts)
}
