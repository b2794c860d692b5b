package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Chain settings
	RPCUrl          string
	CoreAddress     string
	EventsInterval  time.Duration
	EventsFromBlock uint64

	// Remote order source
	OrdersSubgraphURL string
	PricesSubgraphURL string
	PageSize          int

	// Mongo settings
	MongoURI      string
	MongoDatabase string

	// Redis settings
	RedisAddr string

	// Enrichment queue
	QueueConcurrency int
	QueueInterval    time.Duration
	BatchInterval    time.Duration

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server
	APIAddr string
	APIKey  string
	DevMode bool
}

func Load() *Config {
	return &Config{
		// Chain
		RPCUrl:          getEnv("BSC_RPC_URL", "https://bsc-dataseed.binance.org"),
		CoreAddress:     getEnv("MATE_CORE_ADDRESS", "0x9d4e36B91b4F1D56f594E5F1C00b17B95e907bBB"),
		EventsInterval:  getDurationEnv("EVENTS_INTERVAL", 15*time.Second),
		EventsFromBlock: uint64(getIntEnv("EVENTS_FROM_BLOCK", 0)),

		// Remote order source
		OrdersSubgraphURL: getEnv("ORDERS_SUBGRAPH_URL", "https://api.thegraph.com/subgraphs/name/usemate/mate"),
		PricesSubgraphURL: getEnv("PRICES_SUBGRAPH_URL", "https://bsc.streamingfast.io/subgraphs/name/pancakeswap/exchange-v2"),
		PageSize:          getIntEnv("ORDERS_PAGE_SIZE", 1000),

		// Mongo
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "orderstats"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// Queue
		QueueConcurrency: getIntEnv("QUEUE_CONCURRENCY", 1),
		QueueInterval:    getDurationEnv("QUEUE_INTERVAL", 10*time.Second),
		BatchInterval:    getDurationEnv("BATCH_INTERVAL", time.Hour),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":5000"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),
	}
}

func (c *Config) Validate() error {
	if c.OrdersSubgraphURL == "" {
		return fmt.Errorf("ORDERS_SUBGRAPH_URL is required")
	}
	if c.PricesSubgraphURL == "" {
		return fmt.Errorf("PRICES_SUBGRAPH_URL is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("ORDERS_PAGE_SIZE must be positive")
	}
	if c.QueueConcurrency <= 0 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
