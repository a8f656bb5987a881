// Package distlock provides a Redis-backed mutual-exclusion lock over a
// build id, so two orchestrator processes never run the same build's
// customer/prospect passes concurrently (spec §6.1 "Run is not re-entrant
// for an in-flight build_id").
package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned by Acquire when another process already holds the
// build's lock.
var ErrLocked = errors.New("distlock: build is locked by another run")

const keyPrefix = "territory-engine:build-lock:"

// Lock guards one build_id's lock key and remembers the token it set, so
// Release only clears the lock if it still owns it.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Locker acquires per-build locks. A nil *redis.Client (no REDIS_ADDR
// configured) makes every Acquire a no-op that always succeeds, so
// local/dev deployments run without a Redis dependency; in that mode no
// build-level exclusion is enforced at all.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Locker. client may be nil.
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire sets the build's lock key with SET NX PX, returning ErrLocked if
// another run already holds it.
func (l *Locker) Acquire(ctx context.Context, buildID string) (*Lock, error) {
	if l == nil || l.client == nil {
		return &Lock{}, nil
	}
	token := uuid.NewString()
	key := keyPrefix + buildID
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Release frees the lock if this Lock still owns it. Safe to call on the
// no-op Lock returned when no Redis client is configured.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
