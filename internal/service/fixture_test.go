package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/events"
	"github.com/spot-sort/issue-service/internal/otp"
	"github.com/spot-sort/issue-service/internal/repository"
	"github.com/spot-sort/issue-service/internal/repository/memory"
	"github.com/spot-sort/issue-service/internal/storage"
)

var pngEvidence = Evidence{
	Data:     append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...),
	Filename: "evidence.png",
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

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail func(to, subject string) error
}

func (n *capturingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(to, subject); err != nil {
			return err
		}
	}
	n.sent = append(n.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *capturingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

var sixDigits = regexp.MustCompile(`\b(\d{6})\b`)

// lastCode returns the verification code from the newest email to addr.
func (n *capturingNotifier) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msgs := n.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To != addr || !strings.Contains(msgs[i].Subject, "verification code") {
			continue
		}
		if m := sixDigits.FindStringSubmatch(msgs[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no verification code sent to %s", addr)
	return ""
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	putErr  error
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, img storage.Image, meta storage.Meta) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	b.seq++
	ref := fmt.Sprintf("%s-%d%s", meta.Purpose, b.seq, img.Extension)
	b.objects[ref] = img.Data
	return ref, nil
}

func (b *fakeBlobs) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[ref]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", nil
}

func (b *fakeBlobs) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, ref)
	b.deleted = append(b.deleted, ref)
	return nil
}

func (b *fakeBlobs) URL(ref string) string {
	return "http://test.local/uploads/" + ref
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// failingIssues fails Create while createErr is set.
type failingIssues struct {
	*memory.IssueRepository
	createErr error
}

func (r *failingIssues) Create(ctx context.Context, issue *domain.Issue) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.IssueRepository.Create(ctx, issue)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) record(_ context.Context, e events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recordedEvents) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	users       *memory.UserRepository
	issues      *failingIssues
	blobs       *fakeBlobs
	notifier    *capturingNotifier
	otpStore    *otp.MemoryStore
	clock       *fakeClock
	recorded    *recordedEvents
	credentials *auth.CredentialStore
	tokens      *auth.TokenManager

	issueSvc  *IssueService
	submitSvc *SubmissionService
	authSvc   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:       memory.NewUserRepository(),
		issues:      &failingIssues{IssueRepository: memory.NewIssueRepository()},
		blobs:       newFakeBlobs(),
		notifier:    &capturingNotifier{},
		otpStore:    otp.NewMemoryStore(),
		clock:       &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		recorded:    &recordedEvents{},
		credentials: auth.NewCredentialStore(4),
		tokens:      auth.NewTokenManager("test-secret", 60),
	}

	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, f.recorded.record, events.IssueEventTypes...)

	tickets := otp.NewService(otp.ServiceDependencies{
		Store:    f.otpStore,
		Notifier: f.notifier,
		Now:      f.clock.Now,
	})

	f.issueSvc = NewIssueService(IssueDependencies{
		IssueRepo:  f.issues,
		UserRepo:   f.users,
		Blobs:      f.blobs,
		Dispatcher: dispatcher,
		Now:        f.clock.Now,
	})
	f.submitSvc = NewSubmissionService(SubmissionDependencies{
		IssueRepo:   f.issues,
		UserRepo:    f.users,
		Blobs:       f.blobs,
		Tickets:     tickets,
		Credentials: f.credentials,
		Notifier:    f.notifier,
		Dispatcher:  dispatcher,
		Now:         f.clock.Now,
	})
	f.authSvc = NewAuthService(AuthDependencies{
		UserRepo:     f.users,
		Credentials:  f.credentials,
		TokenManager: f.tokens,
		Tickets:      tickets,
	})
	return f
}

func (f *fixture) account(t *testing.T, email string, role domain.Role, zone string) domain.Actor {
	t.Helper()
	hash, err := f.credentials.Hash("password123")
	require.NoError(t, err)
	user := &domain.User{
		Name:         email,
		Email:        email,
		MobileNumber: "5550100",
		PasswordHash: hash,
		Role:         role,
		Zone:         zone,
		Verified:     true,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return domain.ActorFromUser(user)
}

// seedIssue stores an issue in zone reported by reporter with the given status.
func (f *fixture) seedIssue(t *testing.T, ticketID, zone string, reporter domain.Actor, status domain.IssueStatus) *domain.Issue {
	t.Helper()
	reporterID := reporter.UserID
	issue := &domain.Issue{
		TicketID:      ticketID,
		ReporterID:    &reporterID,
		Type:          domain.IssueTypePothole,
		Title:         "Pothole on " + zone,
		Description:   "Deep pothole",
		Location:      domain.Location{Lat: 12.9, Lng: 77.6},
		Zone:          zone,
		Status:        status,
		IssueImageRef: "seed.png",
	}
	if status == domain.IssueStatusClosed {
		closed := f.clock.Now()
		issue.ClosedAt = &closed
	}
	require.NoError(t, f.issues.IssueRepository.Create(context.Background(), issue))
	return issue
}

func (f *fixture) storedStatus(t *testing.T, ticketID string) domain.IssueStatus {
	t.Helper()
	issue, err := f.issues.GetByTicketID(context.Background(), ticketID)
	require.NoError(t, err)
	return issue.Status
}

func (f *fixture) issueCount(t *testing.T) int {
	t.Helper()
	all, err := f.issues.List(context.Background(), repository.IssueFilter{Limit: 1000})
	require.NoError(t, err)
	return len(all)
}

var errBoom = errors.New("boom")
