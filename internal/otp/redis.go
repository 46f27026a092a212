package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spot-sort/issue-service/internal/domain"
)

// DefaultExpiredRetention keeps expired tickets long enough for a late
// redemption to be reported as expired rather than missing.
const DefaultExpiredRetention = 15 * time.Minute

const (
	redeemNotFound  = 0
	redeemExpired   = 1
	redeemMismatch  = 2
	redeemOK        = 3
	redeemWrongKind = 4
)

// redeemScript returns {status[, draft]}.
var redeemScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'code', 'expires_at', 'draft', 'kind')
if not fields[1] then
  return {0}
end
if fields[4] ~= ARGV[3] then
  return {4}
end
if tonumber(ARGV[2]) > tonumber(fields[2]) then
  redis.call('DEL', KEYS[1])
  return {1}
end
if fields[1] ~= ARGV[1] then
  return {2}
end
redis.call('DEL', KEYS[1])
return {3, fields[3]}
`)

// RedisStore keeps tickets in Redis hashes so every instance sees them.
// Key expiry reclaims tickets nobody redeems.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore returns a store writing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		retention: DefaultExpiredRetention,
		now:       time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, ticket Ticket) error {
	draft, err := json.Marshal(ticket.Draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	ttl := ticket.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	key := s.key(ticket.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"code", ticket.Code,
			"expires_at", strconv.FormatInt(ticket.ExpiresAt.UnixMilli(), 10),
			"draft", string(draft),
			"kind", string(ticket.Draft.Kind),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save ticket: %w", err)
	}
	return nil
}

func (s *RedisStore) Redeem(ctx context.Context, id, code string, kind domain.DraftKind, now time.Time) (domain.Draft, error) {
	res, err := redeemScript.Run(ctx, s.client, []string{s.key(id)}, code, now.UnixMilli(), string(kind)).Slice()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("redeem ticket: %w", err)
	}
	if len(res) == 0 {
		return domain.Draft{}, fmt.Errorf("redeem ticket: empty script reply")
	}

	status, _ := res[0].(int64)
	switch status {
	case redeemNotFound:
		return domain.Draft{}, ErrNotFound
	case redeemExpired:
		return domain.Draft{}, ErrExpired
	case redeemMismatch:
		return domain.Draft{}, ErrMismatch
	case redeemWrongKind:
		return domain.Draft{}, ErrWrongKind
	case redeemOK:
	default:
		return domain.Draft{}, fmt.Errorf("redeem ticket: unexpected status %d", status)
	}

	if len(res) < 2 {
		return domain.Draft{}, fmt.Errorf("redeem ticket: missing draft")
	}
	raw, ok := res[1].(string)
	if !ok {
		return domain.Draft{}, fmt.Errorf("redeem ticket: malformed draft")
	}
	var draft domain.Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return domain.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}
