package jobs

import (
	"context"
	"time"

	"salesops_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// RunLock is a best-effort redis lock keeping two schedulers from kicking
// off the same job simultaneously. It is an optimization, not a
// correctness mechanism: every job tolerates overlapping runs through its
// guarded writes, so an unreachable redis fails open.
type RunLock struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRunLock creates a run lock. client may be nil, which disables locking.
func NewRunLock(client *redis.Client, log *logger.Logger) *RunLock {
	return &RunLock{client: client, log: log}
}

// Acquire tries to take the named lock for ttl. It returns a release
// function and whether the job should run. Redis errors fail open.
func (l *RunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool) {
	noop := func() {}
	if l.client == nil {
		return noop, true
	}

	key := "jobs:lock:" + name
	acquired, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		l.log.Warn("run lock unavailable, proceeding without it", "job", name, "error", err)
		return noop, true
	}
	if !acquired {
		return noop, false
	}
	return func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			l.log.Warn("run lock release failed", "job", name, "error", err)
		}
	}, true
}
