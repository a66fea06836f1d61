package visitors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	createScript = redis.NewScript(`
local ok = redis.call('HSETNX', KEYS[1], 'totalVisits', ARGV[1])
if ok == 0 then return 0 end
redis.call('HSET', KEYS[1], 'totalVisitors', ARGV[2])
for i = 4, #ARGV do
	redis.call('ZADD', KEYS[2], 'NX', ARGV[3], ARGV[i])
end
return 1
`)

	incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
return redis.call('HINCRBY', KEYS[1], 'totalVisits', 1)
`)

	addVisitorScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local added = redis.call('ZADD', KEYS[2], 'NX', ARGV[1], ARGV[2])
if added == 1 then
	redis.call('HINCRBY', KEYS[1], 'totalVisitors', 1)
end
return added
`)
)

// RedisStore keeps the counters in a hash and the visitor set in a sorted set
// scored by first-seen time. Each mutation runs as one Lua script.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "analytics:visitors"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) hashKey() string { return s.prefix }
func (s *RedisStore) setKey() string  { return s.prefix + ":members" }

func (s *RedisStore) Get(ctx context.Context) (Ledger, error) {
	fields, err := s.rdb.HGetAll(ctx, s.hashKey()).Result()
	if err != nil {
		return Ledger{}, err
	}
	if len(fields) == 0 {
		return Ledger{}, ErrLedgerNotFound
	}

	var l Ledger
	if l.TotalVisits, err = parseCount(fields["totalVisits"]); err != nil {
		return Ledger{}, fmt.Errorf("totalVisits: %w", err)
	}
	if l.TotalVisitors, err = parseCount(fields["totalVisitors"]); err != nil {
		return Ledger{}, fmt.Errorf("totalVisitors: %w", err)
	}

	l.Visitors, err = s.rdb.ZRange(ctx, s.setKey(), 0, -1).Result()
	if err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func (s *RedisStore) Create(ctx context.Context, l Ledger) error {
	args := []any{l.TotalVisits, l.TotalVisitors, time.Now().UnixMilli()}
	for _, id := range l.Visitors {
		args = append(args, id)
	}

	created, err := createScript.Run(ctx, s.rdb, []string{s.hashKey(), s.setKey()}, args...).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return ErrLedgerExists
	}
	return nil
}

func (s *RedisStore) IncrementVisits(ctx context.Context) error {
	n, err := incrementScript.Run(ctx, s.rdb, []string{s.hashKey()}).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		return ErrLedgerNotFound
	}
	return nil
}

func (s *RedisStore) AddVisitor(ctx context.Context, id string) (bool, error) {
	added, err := addVisitorScript.Run(ctx, s.rdb,
		[]string{s.hashKey(), s.setKey()},
		time.Now().UnixMilli(), id,
	).Int()
	if err != nil {
		return false, err
	}
	if added < 0 {
		return false, ErrLedgerNotFound
	}
	return added == 1, nil
}

func parseCount(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
