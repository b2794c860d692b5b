package blacklist

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	tokensKey = "blacklist:tokens"
	ordersKey = "blacklist:orders"
)

// SeedTokens are known-bad tokens banned from enrichment from the
// start. Addresses are matched case-insensitively.
var SeedTokens = []string{
	"0x87230146E138d3F296a9a77e497A2A83012e9Bc5",
	"0x7a565284572d03ec50c35396f7d6001252eb43b6",
}

// Registry is the process-wide set of banned tokens and suppressed
// order identifiers. Lookups are in-memory and safe for concurrent use
// by the enrichment workers. Mutations are mirrored to redis
// best-effort so the sets survive restarts; a nil client keeps the
// registry purely in-memory.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
	orders map[string]struct{}

	client redis.Cmdable
	logger *logrus.Logger
}

func NewRegistry(client redis.Cmdable, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Registry{
		tokens: make(map[string]struct{}),
		orders: make(map[string]struct{}),
		client: client,
		logger: logger,
	}
	for _, token := range SeedTokens {
		r.tokens[strings.ToLower(token)] = struct{}{}
	}
	return r
}

// Load seeds the registry from the redis mirror. Mirror failures leave
// the static seed in place.
func (r *Registry) Load(ctx context.Context) error {
	if r.client == nil {
		return nil
	}

	tokens, err := r.client.SMembers(ctx, tokensKey).Result()
	if err != nil {
		return err
	}
	orders, err := r.client.SMembers(ctx, ordersKey).Result()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range tokens {
		r.tokens[strings.ToLower(token)] = struct{}{}
	}
	for _, id := range orders {
		r.orders[strings.ToLower(id)] = struct{}{}
	}

	r.logger.WithFields(logrus.Fields{
		"tokens": len(r.tokens),
		"orders": len(r.orders),
	}).Info("blacklist registry loaded")
	return nil
}

func (r *Registry) IsTokenBlacklisted(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[strings.ToLower(token)]
	return ok
}

func (r *Registry) BlacklistToken(ctx context.Context, token string) {
	r.mu.Lock()
	r.tokens[strings.ToLower(token)] = struct{}{}
	r.mu.Unlock()
	r.mirror(ctx, func(p redis.Pipeliner) {
		p.SAdd(ctx, tokensKey, strings.ToLower(token))
	})
}

func (r *Registry) UnblacklistToken(ctx context.Context, token string) {
	r.mu.Lock()
	delete(r.tokens, strings.ToLower(token))
	r.mu.Unlock()
	r.mirror(ctx, func(p redis.Pipeliner) {
		p.SRem(ctx, tokensKey, strings.ToLower(token))
	})
}

func (r *Registry) IsOrderSuppressed(orderID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.orders[strings.ToLower(orderID)]
	return ok
}

func (r *Registry) SuppressOrder(ctx context.Context, orderID string) {
	r.mu.Lock()
	r.orders[strings.ToLower(orderID)] = struct{}{}
	r.mu.Unlock()
	r.mirror(ctx, func(p redis.Pipeliner) {
		p.SAdd(ctx, ordersKey, strings.ToLower(orderID))
	})
}

func (r *Registry) UnsuppressOrder(ctx context.Context, orderID string) {
	r.mu.Lock()
	delete(r.orders, strings.ToLower(orderID))
	r.mu.Unlock()
	r.mirror(ctx, func(p redis.Pipeliner) {
		p.SRem(ctx, ordersKey, strings.ToLower(orderID))
	})
}

// ShouldIgnore reports whether an order is excluded from enrichment and
// statistics, either because one of its tokens is blacklisted or
// because the order itself is suppressed.
func (r *Registry) ShouldIgnore(tokenIn, tokenOut, orderID string) bool {
	if tokenIn != "" && r.IsTokenBlacklisted(tokenIn) {
		return true
	}
	if tokenOut != "" && r.IsTokenBlacklisted(tokenOut) {
		return true
	}
	return r.IsOrderSuppressed(orderID)
}

// Tokens returns the currently blacklisted tokens.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		out = append(out, token)
	}
	return out
}

// Orders returns the currently suppressed order identifiers.
func (r *Registry) Orders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.orders))
	for id := range r.orders {
		out = append(out, id)
	}
	return out
}

func (r *Registry) mirror(ctx context.Context, fn func(redis.Pipeliner)) {
	if r.client == nil {
		return
	}
	pipe := r.client.TxPipeline()
	fn(pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithError(err).Warn("blacklist mirror write failed")
	}
}
