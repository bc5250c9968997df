package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock_not_held")

// releaseScript deletes the key only while it still carries our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// Redis is a SET NX PX lock shared by every replica pointing at the same
// Redis. The TTL bounds how long a crashed holder blocks a case.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption { return func(r *Redis) { r.prefix = prefix } }

func WithTTL(ttl time.Duration) RedisOption { return func(r *Redis) { r.ttl = ttl } }

func WithRetryInterval(d time.Duration) RedisOption { return func(r *Redis) { r.retry = d } }

func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "ledger:lock",
		ttl:    10 * time.Second,
		retry:  25 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewRedisFromURL parses a redis:// URL and builds a lock on a fresh client.
func NewRedisFromURL(url string, opts ...RedisOption) (*Redis, *redis.Client, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(o)
	return NewRedis(client, opts...), client, nil
}

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

// Lock polls SET NX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	full := r.key(key)
	token := newToken()

	t := time.NewTicker(r.retry)
	defer t.Stop()
	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// Release must run even when the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.release(ctx, full, token)
	}, nil
}

func (r *Redis) release(ctx context.Context, full, token string) error {
	n, err := r.client.Eval(ctx, releaseScript, []string{full}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
