package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"base-distance/internal/metrics"
	"base-distance/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ProxyClient queries a geocoding proxy with GET <endpoint>?q=<term>.
// The proxy answers with the Google-style results envelope.
type ProxyClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ProxyClientConfig configures NewProxyClient. A zero RatePerSecond disables pacing.
type ProxyClientConfig struct {
	Endpoint      string
	Timeout       time.Duration
	RatePerSecond float64
}

type proxyResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

func NewProxyClient(cfg ProxyClientConfig) *ProxyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &ProxyClient{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Resolve returns ErrNotFound, wrapped with the cause, for any network
// error, non-2xx status, undecodable body or result without coordinates.
func (c *ProxyClient) Resolve(ctx context.Context, term string) (models.Coordinate, error) {
	var zero models.Coordinate
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("%w: wait: %v", ErrNotFound, err)
	}

	start := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	defer func() {
		metrics.GeocodeDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	body, err := c.doRequest(ctx, term)
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		return zero, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var resp proxyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.GeocodeFailTotal.Inc()
		return zero, fmt.Errorf("%w: unmarshal response: %v", ErrNotFound, err)
	}
	if len(resp.Results) == 0 {
		metrics.GeocodeFailTotal.Inc()
		return zero, ErrNotFound
	}

	loc := resp.Results[0].Geometry.Location
	if loc.Lat == nil || loc.Lng == nil {
		metrics.GeocodeFailTotal.Inc()
		return zero, fmt.Errorf("%w: result has no coordinates", ErrNotFound)
	}

	log.Debug().
		Str("term", term).
		Str("label", resp.Results[0].FormattedAddress).
		Msg("geocode resolved")
	return models.Coordinate{Lat: *loc.Lat, Lon: *loc.Lng}, nil
}

func (c *ProxyClient) doRequest(ctx context.Context, term string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

var _ Resolver = (*ProxyClient)(nil)
