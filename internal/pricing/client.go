package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const tokenPriceQuery = `query getTokenPrice($token: ID!, $block: Int) {
  token(id: $token, block: { number: $block }) {
    derivedUSD
  }
}`

// ClientConfig holds configuration for the price source client.
type ClientConfig struct {
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// Client resolves historical USD unit prices from the exchange
// subgraph. Responses are cached per token+block for the lifetime of
// the process: a price at a past block never changes, and repeated
// resolves for the same pair are the common case during reconciliation.
type Client struct {
	url    string
	http   *resty.Client
	logger *logrus.Logger

	mu    sync.RWMutex
	cache map[string]string
}

type priceResponse struct {
	Data struct {
		Token *struct {
			DerivedUSD string `json:"derivedUSD"`
		} `json:"token"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBackoff)

	return &Client{
		url:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http:   http,
		logger: cfg.Logger,
		cache:  make(map[string]string),
	}
}

// UnitPriceUSD returns the USD price of one whole token at the given
// block, as a decimal string. Returns ErrPriceUnavailable when the
// subgraph has no price for that token+block.
func (c *Client) UnitPriceUSD(ctx context.Context, token, blockNumber string) (string, error) {
	key := strings.ToLower(token) + "@" + blockNumber

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	block := 0
	if _, err := fmt.Sscanf(blockNumber, "%d", &block); err != nil {
		return "", fmt.Errorf("%w: bad block number %q", ErrPriceUnavailable, blockNumber)
	}

	var out priceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"query": tokenPriceQuery,
			"variables": map[string]any{
				"token": strings.ToLower(token),
				"block": block,
			},
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: http %d", ErrPriceUnavailable, resp.StatusCode())
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("%w: %s", ErrPriceUnavailable, out.Errors[0].Message)
	}
	if out.Data.Token == nil || out.Data.Token.DerivedUSD == "" {
		return "", fmt.Errorf("%w: %s at block %s", ErrPriceUnavailable, token, blockNumber)
	}

	price := out.Data.Token.DerivedUSD
	c.mu.Lock()
	c.cache[key] = price
	c.mu.Unlock()
	return price, nil
}
