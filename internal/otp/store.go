// Package otp issues and redeems single-use verification tickets that
// hold a pending draft until the emailed code is confirmed.
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/spot-sort/issue-service/internal/domain"
)

var (
	ErrNotFound  = errors.New("otp: ticket not found")
	ErrExpired   = errors.New("otp: ticket expired")
	ErrMismatch  = errors.New("otp: code mismatch")
	ErrWrongKind = errors.New("otp: ticket holds a different draft kind")
)

// Ticket pairs a verification code with the draft it unlocks.
type Ticket struct {
	ID        string
	Code      string
	ExpiresAt time.Time
	Draft     domain.Draft
}

// Store persists tickets. Redeem must check and evict atomically so a
// ticket yields its draft at most once:
//   - missing ticket: ErrNotFound
//   - draft of another kind: ticket kept, ErrWrongKind
//   - now after ExpiresAt: ticket evicted, ErrExpired
//   - wrong code: ticket kept, ErrMismatch
//   - otherwise: ticket evicted, draft returned
type Store interface {
	Save(ctx context.Context, ticket Ticket) error
	Redeem(ctx context.Context, id, code string, kind domain.DraftKind, now time.Time) (domain.Draft, error)
	Delete(ctx context.Context, id string) error
}
