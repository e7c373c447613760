package geocode

import (
	"context"

	"base-distance/internal/config"
	"github.com/rs/zerolog/log"
)

// NewProxyAdapter builds an Adapter over the configured geocoding proxy. It
// returns ErrNotConfigured when no endpoint is set. An unreachable redis
// falls back to the in-process cache.
func NewProxyAdapter(ctx context.Context, cfg config.Config) (*Adapter, error) {
	if cfg.GeocodeEndpoint == "" {
		return nil, ErrNotConfigured
	}

	client := NewProxyClient(ProxyClientConfig{
		Endpoint:      cfg.GeocodeEndpoint,
		Timeout:       cfg.GeocodeTimeout,
		RatePerSecond: cfg.GeocodeRateLimit,
	})

	rdb := OpenRedis(cfg.RedisAddress, cfg.RedisPassword)
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("redis_address", cfg.RedisAddress).Msg("redis unavailable, using in-process geocode cache")
			rdb.Close()
			rdb = nil
		} else {
			log.Info().Str("redis_address", cfg.RedisAddress).Msg("geocode cache backed by redis")
		}
	}

	return NewAdapter(client, NewCache(rdb)), nil
}
