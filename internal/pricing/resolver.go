package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PriceSource supplies historical USD unit prices.
type PriceSource interface {
	UnitPriceUSD(ctx context.Context, token, blockNumber string) (string, error)
}

// MetadataSource supplies token decimal precision.
type MetadataSource interface {
	Decimals(ctx context.Context, token string) (uint8, error)
}

// TokenPolicy gates which tokens may be valued at all.
type TokenPolicy interface {
	IsTokenBlacklisted(token string) bool
}

// Valuation is the result of resolving one raw amount at one block.
type Valuation struct {
	// UsdAmount is the USD-equivalent of the raw amount.
	UsdAmount string
	// UnitPrice is the raw USD price of one whole token, kept so the
	// caller can persist it into the snapshot without re-fetching.
	UnitPrice string
}

// Resolver turns a (token, block, raw amount) triple into a USD
// valuation. All arithmetic is arbitrary-precision decimal; raw
// amounts routinely exceed 2^53.
type Resolver struct {
	prices    PriceSource
	metadata  MetadataSource
	blacklist TokenPolicy
	logger    *logrus.Logger
}

func NewResolver(prices PriceSource, metadata MetadataSource, blacklist TokenPolicy, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{prices: prices, metadata: metadata, blacklist: blacklist, logger: logger}
}

// Resolve values rawAmount of token at blockNumber. Blacklisted tokens
// fail before any external call is made.
func (r *Resolver) Resolve(ctx context.Context, token, blockNumber, rawAmount string) (Valuation, error) {
	if !isPositiveInteger(blockNumber) {
		return Valuation{}, fmt.Errorf("block number must be a positive integer, got %q", blockNumber)
	}
	if !isNonNegativeInteger(rawAmount) {
		return Valuation{}, fmt.Errorf("raw amount must be a non-negative integer, got %q", rawAmount)
	}

	if r.blacklist != nil && r.blacklist.IsTokenBlacklisted(token) {
		return Valuation{}, fmt.Errorf("%w: %s", ErrTokenBlacklisted, token)
	}

	price, err := r.prices.UnitPriceUSD(ctx, token, blockNumber)
	if err != nil {
		return Valuation{}, err
	}

	decimals, err := r.metadata.Decimals(ctx, token)
	if err != nil {
		return Valuation{}, fmt.Errorf("%w: %s: %v", ErrDecimalsLookup, token, err)
	}

	raw, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return Valuation{}, fmt.Errorf("parse raw amount %q: %w", rawAmount, err)
	}
	unitPrice, err := decimal.NewFromString(price)
	if err != nil {
		return Valuation{}, fmt.Errorf("%w: bad price %q", ErrPriceUnavailable, price)
	}

	usd := raw.Shift(-int32(decimals)).Mul(unitPrice)

	return Valuation{
		UsdAmount: usd.String(),
		UnitPrice: price,
	}, nil
}

func isPositiveInteger(s string) bool {
	if !isNonNegativeInteger(s) {
		return false
	}
	for _, c := range s {
		if c != '0' {
			return true
		}
	}
	return false
}

func isNonNegativeInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
