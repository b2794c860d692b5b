package pricing

import "errors"

var (
	// ErrTokenBlacklisted is a policy rejection: the valuation side is
	// left permanently unenriched, the order itself is still persisted.
	ErrTokenBlacklisted = errors.New("token is blacklisted")

	// ErrPriceUnavailable means the price source had no USD price for
	// the token at the requested block. Transient; the next
	// reconciliation pass retries.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrDecimalsLookup means the on-chain decimals read failed.
	// Transient; the next reconciliation pass retries.
	ErrDecimalsLookup = errors.New("decimals lookup failed")
)
