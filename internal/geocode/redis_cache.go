package geocode

import (
	"context"
	"encoding/json"

	"base-distance/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "geocode:"

// RedisCache shares resolved coordinates between processes. Keys are written
// without a TTL so entries behave like the in-process cache. Redis errors
// degrade to a miss.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

func (c *RedisCache) Get(ctx context.Context, term string) (models.Coordinate, bool) {
	var v models.Coordinate
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+term).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("term", term).Msg("geocode cache read failed")
		}
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("term", term).Msg("geocode cache entry corrupt")
		return v, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, term string, v models.Coordinate) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+term, raw, 0).Err(); err != nil {
		log.Warn().Err(err).Str("term", term).Msg("geocode cache write failed")
	}
}

var _ Cache = (*RedisCache)(nil)
