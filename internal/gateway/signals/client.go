// Package signals talks to the external pool scoring service. It is the
// only RecommendationSource used in production; the planner treats a 404
// as "no signal for this pool" rather than a failure.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rextempo/liqpro/internal/logger"
	"github.com/rextempo/liqpro/internal/types"
)

const (
	recommendationPathFmt = "/api/v1/pools/%s/recommendation"
	defaultTimeout        = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// Options configure a Client beyond the base URL.
type Options struct {
	APIKey  string
	Timeout time.Duration
}

// Client fetches per-pool recommendations over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL string, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("signals client requires base URL")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("signals base URL invalid: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// GetRecommendation fetches the signal for one pool. The second return is
// false when the service knows nothing about the pool (HTTP 404).
func (c *Client) GetRecommendation(ctx context.Context, poolAddress string) (types.PoolRecommendation, bool, error) {
	poolAddress = strings.TrimSpace(poolAddress)
	if poolAddress == "" {
		return types.PoolRecommendation{}, false, fmt.Errorf("pool address cannot be empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := c.baseURL + fmt.Sprintf(recommendationPathFmt, url.PathEscape(poolAddress))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.PoolRecommendation{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.PoolRecommendation{}, false, fmt.Errorf("signals request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.Debugf("Signals: no recommendation for pool %s", poolAddress)
		return types.PoolRecommendation{}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.PoolRecommendation{}, false, fmt.Errorf("signals unexpected status %s for pool %s", resp.Status, poolAddress)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.PoolRecommendation{}, false, fmt.Errorf("signals read body failed: %w", err)
	}
	if err := validateRecommendationPayload(body); err != nil {
		return types.PoolRecommendation{}, false, fmt.Errorf("signals payload for pool %s: %w", poolAddress, err)
	}

	var rec types.PoolRecommendation
	if err := json.Unmarshal(body, &rec); err != nil {
		return types.PoolRecommendation{}, false, fmt.Errorf("signals decode failed: %w", err)
	}
	return rec, true, nil
}
