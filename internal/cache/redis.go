package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisOpTimeout = 500 * time.Millisecond

// Tiered layers a Redis tier in front of a local backend. Reads consult Redis
// first and fall back to the local store; writes go to both. Redis being
// unreachable is never an error: every operation degrades silently to the
// local backend.
type Tiered struct {
	remote    *redis.Client
	local     Backend
	prefix    string
	retention time.Duration // Redis expiry; 0 keeps entries until evicted
}

// NewTiered wraps local with a Redis tier. retention bounds how long Redis
// holds an entry; the local backend keeps the durable (and stale-servable)
// copy.
func NewTiered(remote *redis.Client, local Backend, retention time.Duration) *Tiered {
	return &Tiered{
		remote:    remote,
		local:     local,
		prefix:    "gridpulse:cache:",
		retention: retention,
	}
}

func (t *Tiered) Get(key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := t.remote.Get(ctx, t.prefix+key).Bytes()
	if err == nil {
		var e Entry
		if jerr := json.Unmarshal(data, &e); jerr == nil {
			return e, true, nil
		}
		log.Warn().Str("key", key).Msg("Corrupt Redis cache entry, falling back to local store")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis read failed, falling back to local store")
	}

	return t.local.Get(key)
}

func (t *Tiered) Set(key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := t.remote.Set(ctx, t.prefix+key, data, t.retention).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis write failed, keeping local copy only")
	}

	return t.local.Set(key, e)
}

func (t *Tiered) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := t.remote.Del(ctx, t.prefix+key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis delete failed")
	}
	return t.local.Delete(key)
}

func (t *Tiered) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := t.remote.Scan(ctx, 0, t.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := t.remote.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn().Err(err).Str("key", iter.Val()).Msg("Redis delete failed during clear")
		}
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("Redis scan failed during clear")
	}

	return t.local.Clear()
}
