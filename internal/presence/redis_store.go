package presence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per document, field "<user>:<conn>" holding the
// join time, and a sorted set of the same fields scored by last heartbeat.
// A connection whose heartbeat is older than ttl is pruned on the next read,
// so a crashed instance's entries disappear even while others keep reading.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func presenceKey(documentID uint64) string {
	return fmt.Sprintf("presence:document:%d", documentID)
}

func heartbeatKey(documentID uint64) string {
	return fmt.Sprintf("presence:document:%d:seen", documentID)
}

func connField(userID uint64, connID string) string {
	return fmt.Sprintf("%d:%s", userID, connID)
}

func (s *RedisStore) Add(ctx context.Context, documentID, userID uint64, connID string, joinedAt time.Time) error {
	key, seen := presenceKey(documentID), heartbeatKey(documentID)
	field := connField(userID, connID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field, joinedAt.UTC().Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, seen, redis.Z{Score: float64(s.now().UnixMilli()), Member: field})
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, seen, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, documentID, userID uint64, connID string) (bool, error) {
	key, seen := presenceKey(documentID), heartbeatKey(documentID)
	field := connField(userID, connID)

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, key, field)
	pipe.ZRem(ctx, seen, field)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if err := s.prune(ctx, documentID); err != nil {
		return false, err
	}

	fields, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return false, err
	}
	prefix := strconv.FormatUint(userID, 10) + ":"
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			return false, nil
		}
	}
	return true, nil
}

func (s *RedisStore) Members(ctx context.Context, documentID uint64) ([]Member, error) {
	if err := s.prune(ctx, documentID); err != nil {
		return nil, err
	}

	entries, err := s.client.HGetAll(ctx, presenceKey(documentID)).Result()
	if err != nil {
		return nil, err
	}

	conns := make([]Member, 0, len(entries))
	for field, value := range entries {
		userPart, _, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		userID, err := strconv.ParseUint(userPart, 10, 64)
		if err != nil {
			continue
		}
		joinedAt, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			continue
		}
		conns = append(conns, Member{UserID: userID, JoinedAt: joinedAt})
	}
	return dedupe(conns), nil
}

// Refresh records a heartbeat for one connection and extends both keys.
// A connection pruned while its stream stayed open is re-added.
func (s *RedisStore) Refresh(ctx context.Context, documentID, userID uint64, connID string) error {
	key, seen := presenceKey(documentID), heartbeatKey(documentID)
	field := connField(userID, connID)
	now := s.now()

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, field, now.UTC().Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, seen, redis.Z{Score: float64(now.UnixMilli()), Member: field})
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, seen, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// prune drops connections whose last heartbeat is older than ttl.
func (s *RedisStore) prune(ctx context.Context, documentID uint64) error {
	key, seen := presenceKey(documentID), heartbeatKey(documentID)
	cutoff := s.now().Add(-s.ttl).UnixMilli()

	stale, err := s.client.ZRangeByScore(ctx, seen, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil || len(stale) == 0 {
		return err
	}

	members := make([]any, len(stale))
	for i, f := range stale {
		members[i] = f
	}
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, key, stale...)
	pipe.ZRem(ctx, seen, members...)
	_, err = pipe.Exec(ctx)
	return err
}
