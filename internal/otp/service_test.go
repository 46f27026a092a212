package otp

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/notify"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

type capturingNotifier struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (n *capturingNotifier) Send(_ context.Context, to, _ string, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.to = append(n.to, to)
	n.body = append(n.body, body)
	return nil
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (n *capturingNotifier) lastCode(t *testing.T) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.body)
	m := codePattern.FindStringSubmatch(n.body[len(n.body)-1])
	require.Len(t, m, 2)
	return m[1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(n notify.Notifier) (*Service, *MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	clock := &fakeClock{now: storeEpoch}
	svc := NewService(ServiceDependencies{Store: store, Notifier: n, Now: clock.Now})
	return svc, store, clock
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestIssueAndRedeem(t *testing.T) {
	ctx := context.Background()
	n := &capturingNotifier{}
	svc, store, _ := newTestService(n)

	id, err := svc.Issue(ctx, reportDraft(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"ada@example.com"}, n.to)

	draft, err := svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindIssueReport)
	require.NoError(t, err)
	assert.Equal(t, reportDraft(), draft)
	assert.Zero(t, store.Len())

	_, err = svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRedeemWrongCodeCanRetry(t *testing.T) {
	ctx := context.Background()
	n := &capturingNotifier{}
	svc, _, _ := newTestService(n)
	svc.newCode = func() (string, error) { return "482913", nil }

	id, err := svc.Issue(ctx, reportDraft(), "ada@example.com")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, id, "482914", domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOTPMismatch))

	_, err = svc.Redeem(ctx, id, " 482913 ", domain.DraftKindIssueReport)
	assert.NoError(t, err)
}

func TestRedeemAfterExpiry(t *testing.T) {
	ctx := context.Background()
	n := &capturingNotifier{}
	svc, _, clock := newTestService(n)

	id, err := svc.Issue(ctx, reportDraft(), "ada@example.com")
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)

	_, err = svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOTPExpired))

	_, err = svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestIssueDiscardsTicketWhenDeliveryFails(t *testing.T) {
	n := &capturingNotifier{err: errors.New("smtp down")}
	svc, store, _ := newTestService(n)

	id, err := svc.Issue(context.Background(), reportDraft(), "ada@example.com")
	assert.Empty(t, id)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotificationFailed))
	assert.Zero(t, store.Len())
}

func TestIssueValidatesInput(t *testing.T) {
	svc, store, _ := newTestService(&capturingNotifier{})

	_, err := svc.Issue(context.Background(), domain.Draft{Kind: domain.DraftKindIssueReport}, "ada@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svc.Issue(context.Background(), reportDraft(), "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, store.Len())
}

func TestRedeemUnknownTicket(t *testing.T) {
	svc, _, _ := newTestService(&capturingNotifier{})

	_, err := svc.Redeem(context.Background(), "", "123456", domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = svc.Redeem(context.Background(), "nope", "123456", domain.DraftKindIssueReport)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRedeemForOtherPurposeKeepsTicket(t *testing.T) {
	ctx := context.Background()
	n := &capturingNotifier{}
	svc, store, _ := newTestService(n)

	id, err := svc.Issue(ctx, reportDraft(), "ada@example.com")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindAccountVerification)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, 1, store.Len())

	draft, err := svc.Redeem(ctx, id, n.lastCode(t), domain.DraftKindIssueReport)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftKindIssueReport, draft.Kind)
}
