package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"

	"github.com/rowanvale/compass-backend/internal/logger"
)

// UserLocker serializes check-then-create work for one user across server
// instances. The plan/artifact unique constraints remain the correctness
// backstop; the lock just keeps concurrent ensure calls from both paying the
// cost of a constraint violation.
type UserLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID) (release func(), err error)
	Close() error
}

type userLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewUserLocker(log *logger.Logger) (UserLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &userLocker{
		log:    log.With("service", "RedisUserLocker"),
		rdb:    rdb,
		prefix: "compass:ensure-lock:",
		ttl:    30 * time.Second,
	}, nil
}

func (l *userLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis user locker not initialized")
	}
	key := l.prefix + userID.String()
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("ensure already in progress for user %s", userID)
	}

	release := func() {
		// Delete only if we still own the lock; the TTL may have expired and
		// handed it to someone else.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		if err := l.rdb.Eval(context.Background(), script, []string{key}, token).Err(); err != nil {
			l.log.Warn("release ensure lock failed", "key", key, "error", err)
		}
	}
	return release, nil
}

func (l *userLocker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
