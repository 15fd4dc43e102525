// Package locks serializes get-or-create of 1:1 chats across processes.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	keyPrefix  = "guild-chat:dm-pair"
	lockTTL    = 5 * time.Second
	retryEvery = 25 * time.Millisecond
	maxWait    = 2 * time.Second
)

var ErrLockTimeout = errors.New("lock wait timed out")

// PairLock locks a normalized user pair. The returned function releases it.
type PairLock interface {
	Lock(ctx context.Context, low, high int) (func(), error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// RedisPairLock is a SET NX lock with token-checked release.
type RedisPairLock struct {
	rdb *redis.Client
}

func NewRedisPairLock(rdb *redis.Client) *RedisPairLock {
	return &RedisPairLock{rdb: rdb}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisPairLock) Lock(ctx context.Context, low, high int) (func(), error) {
	key := fmt.Sprintf("%s:%d:%d", keyPrefix, low, high)
	token := uuid.NewString()
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// release must survive a cancelled request context
				if err := releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err(); err != nil {
					jww.WARN.Printf("pair lock release failed key=%s: %v", key, err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

// NoopPairLock is used when Redis is not configured.
type NoopPairLock struct{}

func (NoopPairLock) Lock(context.Context, int, int) (func(), error) {
	return func() {}, nil
}
