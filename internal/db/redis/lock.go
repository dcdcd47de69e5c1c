package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/lexivec/lexivec/internal/db"
)

const lockRetryInterval = 100 * time.Millisecond

func (s *Store) lockKey(name string) string {
	return s.prefix + "lock:" + name
}

// AcquireLock takes an exclusive lock with SET NX PX, retrying until timeout.
// The returned token must be passed back to ReleaseLock.
func (s *Store) AcquireLock(
	ctx context.Context, name string, ttl, timeout time.Duration,
) (string, error) {
	token := uuid.NewString()
	key := s.lockKey(name)
	deadline := time.Now().Add(timeout)

	for {
		cmd := s.b().Set().Key(key).Value(token).Nx().Px(ttl).Build()
		err := s.do(ctx, cmd).Error()
		if err == nil {
			return token, nil
		}
		if !rueidis.IsRedisNil(err) {
			return "", &db.Error{Op: db.OpSet, Err: err}
		}

		if time.Now().After(deadline) {
			return "", db.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// ReleaseLock deletes the lock key only when the stored token still matches,
// so an expired-and-reacquired lock is never released by a stale holder.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	key := s.lockKey(name)

	current, err := s.do(ctx, s.b().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil
		}
		return &db.Error{Op: db.OpGet, Err: err}
	}
	if current != token {
		return nil
	}

	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
