package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	prices map[string]string
	calls  int
	err    error
}

func (f *fakePrices) UnitPriceUSD(ctx context.Context, token, blockNumber string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	price, ok := f.prices[token+"@"+blockNumber]
	if !ok {
		return "", ErrPriceUnavailable
	}
	return price, nil
}

type fakeMetadata struct {
	decimals map[string]uint8
	err      error
}

func (f *fakeMetadata) Decimals(ctx context.Context, token string) (uint8, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.decimals[token], nil
}

type fakePolicy struct {
	banned map[string]bool
}

func (f *fakePolicy) IsTokenBlacklisted(token string) bool {
	return f.banned[token]
}

func TestResolver_Resolve(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{"0xcake@1000": "12.5"}}
	metadata := &fakeMetadata{decimals: map[string]uint8{"0xcake": 18}}
	r := NewResolver(prices, metadata, &fakePolicy{}, nil)

	// 2.5 tokens at 12.5 USD each.
	v, err := r.Resolve(context.Background(), "0xcake", "1000", "2500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "31.25", v.UsdAmount)
	assert.Equal(t, "12.5", v.UnitPrice)
}

func TestResolver_AmountBeyondFloatRange(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{"0xbig@1": "2"}}
	metadata := &fakeMetadata{decimals: map[string]uint8{"0xbig": 6}}
	r := NewResolver(prices, metadata, nil, nil)

	// 2^60-ish raw units; float64 would lose the trailing digits.
	v, err := r.Resolve(context.Background(), "0xbig", "1", "1152921504606846977")
	require.NoError(t, err)
	assert.Equal(t, "2305843009213.693954", v.UsdAmount)
}

func TestResolver_BlacklistShortCircuit(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{"0xbad@1000": "1"}}
	metadata := &fakeMetadata{decimals: map[string]uint8{"0xbad": 18}}
	r := NewResolver(prices, metadata, &fakePolicy{banned: map[string]bool{"0xbad": true}}, nil)

	_, err := r.Resolve(context.Background(), "0xbad", "1000", "1000000000000000000")
	assert.ErrorIs(t, err, ErrTokenBlacklisted)
	assert.Equal(t, 0, prices.calls, "price source must never be called for a blacklisted token")
}

func TestResolver_PriceUnavailable(t *testing.T) {
	prices := &fakePrices{}
	metadata := &fakeMetadata{decimals: map[string]uint8{"0xcake": 18}}
	r := NewResolver(prices, metadata, nil, nil)

	_, err := r.Resolve(context.Background(), "0xcake", "1000", "1")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestResolver_DecimalsLookupFailed(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{"0xcake@1000": "1"}}
	metadata := &fakeMetadata{err: errors.New("rpc timeout")}
	r := NewResolver(prices, metadata, nil, nil)

	_, err := r.Resolve(context.Background(), "0xcake", "1000", "1")
	assert.ErrorIs(t, err, ErrDecimalsLookup)
}

func TestResolver_InputValidation(t *testing.T) {
	prices := &fakePrices{}
	r := NewResolver(prices, &fakeMetadata{}, nil, nil)
	ctx := context.Background()

	for _, block := range []string{"", "0", "-1", "12a", "1.5"} {
		_, err := r.Resolve(ctx, "0xcake", block, "1")
		assert.Error(t, err, "block %q must be rejected", block)
	}
	for _, amount := range []string{"", "-1", "1.5", "abc"} {
		_, err := r.Resolve(ctx, "0xcake", "1000", amount)
		assert.Error(t, err, "amount %q must be rejected", amount)
	}
	assert.Equal(t, 0, prices.calls, "validation failures must not reach the price source")
}
