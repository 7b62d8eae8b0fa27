package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"estategate/pkg/logging"
)

const (
	fieldCreatedAt    = "created_at"
	fieldLastAccessed = "last_accessed"
	attributePrefix   = "attr:"
)

// touchScript refreshes last-access time and TTL only for a live session.
var touchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "last_accessed", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

// setAttributeScript writes one attribute without resurrecting a deleted session.
var setAttributeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// takeAttributeScript returns one field and deletes it in the same step.
var takeAttributeScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], ARGV[1])
if v then
  redis.call("HDEL", KEYS[1], ARGV[1])
end
return v
`)

// RedisStore keeps each session in a Redis hash so gateway replicas share
// sessions. Attributes are stored as individual hash fields.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a session store backed by client. Keys are named
// "<prefix>:session:<id>".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "estategate"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (rs *RedisStore) key(id string) string {
	return rs.prefix + ":session:" + id
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Create starts a new session.
func (rs *RedisStore) Create(ctx context.Context) (*Session, error) {
	s := newSession(time.Now())
	key := rs.key(s.ID)

	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldCreatedAt, formatTime(s.CreatedAt),
			fieldLastAccessed, formatTime(s.LastAccessed))
		pipe.PExpire(ctx, key, rs.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logging.Debug("Session", "Created session=%s in redis", logging.TruncateSessionID(s.ID))
	return s, nil
}

// Get loads a session.
func (rs *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := rs.client.HGetAll(ctx, rs.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	s := &Session{
		ID:         id,
		Attributes: make(map[string]string),
	}
	for name, value := range fields {
		switch {
		case name == fieldCreatedAt:
			s.CreatedAt = parseTime(value)
		case name == fieldLastAccessed:
			s.LastAccessed = parseTime(value)
		case strings.HasPrefix(name, attributePrefix):
			s.Attributes[strings.TrimPrefix(name, attributePrefix)] = value
		}
	}
	return s, nil
}

// Touch records access and extends the key's TTL.
func (rs *RedisStore) Touch(ctx context.Context, id string) error {
	ok, err := touchScript.Run(ctx, rs.client, []string{rs.key(id)},
		formatTime(time.Now()), rs.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SetAttribute stores one attribute on a live session.
func (rs *RedisStore) SetAttribute(ctx context.Context, id, name, value string) error {
	ok, err := setAttributeScript.Run(ctx, rs.client, []string{rs.key(id)},
		attributePrefix+name, value).Int()
	if err != nil {
		return fmt.Errorf("failed to set session attribute: %w", err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RemoveAttribute deletes one attribute.
func (rs *RedisStore) RemoveAttribute(ctx context.Context, id, name string) error {
	if err := rs.client.HDel(ctx, rs.key(id), attributePrefix+name).Err(); err != nil {
		return fmt.Errorf("failed to remove session attribute: %w", err)
	}
	return nil
}

// TakeAttribute reads and deletes one attribute atomically.
func (rs *RedisStore) TakeAttribute(ctx context.Context, id, name string) (string, bool, error) {
	value, err := takeAttributeScript.Run(ctx, rs.client, []string{rs.key(id)}, attributePrefix+name).Text()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take session attribute: %w", err)
	}
	return value, true, nil
}

// Delete removes a session.
func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	if err := rs.client.Del(ctx, rs.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logging.Debug("Session", "Deleted session=%s from redis", logging.TruncateSessionID(id))
	return nil
}
