package subgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/models"
)

// ErrRemoteFetch signals that the remote order source could not be
// read. The whole batch fetch is aborted and retried on the next
// scheduled run.
var ErrRemoteFetch = errors.New("remote order fetch failed")

const ordersQuery = `query getOrders($lastID: String, $first: Int) {
  orders(first: $first, where: { id_gt: $lastID }) {
    id
    canceledTimestamp
    createdTimestamp
    executedTimestamp
    status
    creator
    tokenIn
    tokenOut
    amountIn
    amountOutMin
    recievedAmount
    createdBlockNumber
    executedBlockNumber
    executedTransactionHash
    createdTransactionHash
  }
}`

// ClientConfig holds configuration for the order source client.
type ClientConfig struct {
	URL          string
	PageSize     int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// Client reads the canonical order list from the Mate subgraph using
// cursor-based pagination over order identifiers.
type Client struct {
	url      string
	pageSize int
	http     *resty.Client
	logger   *logrus.Logger
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type ordersResponse struct {
	Data struct {
		Orders []models.RemoteOrder `json:"orders"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBackoff)

	return &Client{
		url:      strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		pageSize: cfg.PageSize,
		http:     http,
		logger:   cfg.Logger,
	}
}

// OrdersPage fetches one page of orders after the given identifier
// cursor. An empty page signals the end of the set.
func (c *Client) OrdersPage(ctx context.Context, lastID string) ([]models.RemoteOrder, error) {
	var out ordersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(graphQLRequest{
			Query: ordersQuery,
			Variables: map[string]any{
				"lastID": lastID,
				"first":  c.pageSize,
			},
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http %d", ErrRemoteFetch, resp.StatusCode())
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRemoteFetch, out.Errors[0].Message)
	}
	return out.Data.Orders, nil
}

// AllOrders fetches the complete remote order set, appending pages
// until an empty one is returned. Any page failure aborts the fetch.
func (c *Client) AllOrders(ctx context.Context) ([]models.RemoteOrder, error) {
	var orders []models.RemoteOrder
	lastID := ""

	for {
		page, err := c.OrdersPage(ctx, lastID)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		orders = append(orders, page...)
		lastID = page[len(page)-1].ID
	}

	c.logger.WithField("count", len(orders)).Debug("fetched remote orders")
	return orders, nil
}
