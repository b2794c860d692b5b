package orders

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/models"
	"github.com/usemate/order-stats-api/internal/pricing"
	"github.com/usemate/order-stats-api/internal/storage"
)

// ValuationResolver values one raw amount at one block height.
type ValuationResolver interface {
	Resolve(ctx context.Context, token, blockNumber, rawAmount string) (pricing.Valuation, error)
}

// IgnorePolicy decides whether an order is excluded from enrichment.
type IgnorePolicy interface {
	ShouldIgnore(tokenIn, tokenOut, orderID string) bool
}

// side selects which snapshot of an order is being resolved.
type side int

const (
	createdSide side = iota
	executedSide
)

// Merger is the central idempotent upsert: it merges one remote order
// record into the local store, resolving whatever USD valuations are
// still missing. Remote identity and status fields always win; snapshot
// and savings fields only ever gain values.
type Merger struct {
	store    storage.OrderStore
	resolver ValuationResolver
	policy   IgnorePolicy
	logger   *logrus.Logger
}

func NewMerger(store storage.OrderStore, resolver ValuationResolver, policy IgnorePolicy, logger *logrus.Logger) *Merger {
	if logger == nil {
		logger = logrus.New()
	}
	return &Merger{store: store, resolver: resolver, policy: policy, logger: logger}
}

// ReconcileOrder merges the remote record with the local one (if any),
// enriches missing valuations and persists the result. Valuation
// failures leave fields absent for the next pass; they never abort the
// merge.
func (m *Merger) ReconcileOrder(ctx context.Context, remote models.RemoteOrder) (*models.Order, error) {
	local, err := m.store.FindByID(ctx, remote.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	merged := remote.AsOrder()
	if local != nil {
		// Fields the remote source does not carry survive the merge.
		merged.CreatedBlock = local.CreatedBlock
		merged.ExecutedBlock = local.ExecutedBlock
		merged.SavedPercentage = local.SavedPercentage
		merged.SavedUsd = local.SavedUsd
		merged.CanceledBlockNumber = local.CanceledBlockNumber
		merged.IsIgnored = local.IsIgnored
		if merged.CanceledTimestamp == "" {
			merged.CanceledTimestamp = local.CanceledTimestamp
		}
	}

	merged.CreatedBlock = m.resolveSide(ctx, &merged, createdSide)
	merged.ExecutedBlock = m.resolveSide(ctx, &merged, executedSide)

	if !merged.HasSavings() && merged.CreatedComplete() && merged.ExecutedComplete() {
		if savings, ok := pricing.ComputeSavings(merged.CreatedBlock, merged.ExecutedBlock); ok {
			merged.SavedPercentage = savings.Percentage
			merged.SavedUsd = savings.Amount
		}
	}

	if local == nil {
		err = m.store.Insert(ctx, &merged)
	} else {
		err = m.store.Update(ctx, merged.ID, &merged)
	}
	if err != nil {
		m.logger.WithError(err).WithField("order", remote.ID).Error("failed to persist merged order")
		return nil, err
	}
	return &merged, nil
}

// resolveSide fills in the missing amounts of one snapshot. It starts
// from the existing snapshot so present values are never lost, and
// resolves only what the side is allowed to touch: the creation side
// never populates recieved, the execution side never touches amountIn.
// A blacklisted order gets a nil snapshot and stays unenriched.
func (m *Merger) resolveSide(ctx context.Context, order *models.Order, s side) *models.BlockData {
	blockNumber := order.CreatedBlockNumber
	current := order.CreatedBlock
	if s == executedSide {
		blockNumber = order.ExecutedBlockNumber
		current = order.ExecutedBlock
	}

	if blockNumber == "" {
		return current
	}

	if m.policy != nil && m.policy.ShouldIgnore(order.TokenIn, order.TokenOut, order.ID) {
		m.logger.WithField("order", order.ID).Info("order ignored, skipping valuation")
		return nil
	}

	block := models.BlockData{}
	if current != nil {
		block = *current
	}

	if s == createdSide && !models.HasValue(block.Amounts.AmountIn) {
		if v, ok := m.resolve(ctx, order, order.TokenIn, blockNumber, order.AmountIn); ok {
			block.Amounts.AmountIn = v.UsdAmount
			block.Prices.TokenIn = v.UnitPrice
		} else if m.isNowIgnored(order) {
			return nil
		}
	}

	if !models.HasValue(block.Amounts.AmountOutMin) {
		if v, ok := m.resolve(ctx, order, order.TokenOut, blockNumber, order.AmountOutMin); ok {
			block.Amounts.AmountOutMin = v.UsdAmount
			block.Prices.TokenOut = v.UnitPrice
		} else if m.isNowIgnored(order) {
			return nil
		}
	}

	// RecievedAmount is the raw on-chain payout, where "0" is a real
	// value, unlike the USD snapshot fields.
	if s == executedSide && order.RecievedAmount != "" && !models.HasValue(block.Amounts.Recieved) {
		if v, ok := m.resolve(ctx, order, order.TokenOut, blockNumber, order.RecievedAmount); ok {
			block.Amounts.Recieved = v.UsdAmount
			if block.Prices.TokenOut == "" {
				block.Prices.TokenOut = v.UnitPrice
			}
		} else if m.isNowIgnored(order) {
			return nil
		}
	}

	return &block
}

// resolve values one amount, treating every failure as "still missing".
func (m *Merger) resolve(ctx context.Context, order *models.Order, token, blockNumber, rawAmount string) (pricing.Valuation, bool) {
	v, err := m.resolver.Resolve(ctx, token, blockNumber, rawAmount)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"order": order.ID,
			"token": token,
			"block": blockNumber,
		}).Warn("valuation not resolved")
		return pricing.Valuation{}, false
	}
	return v, true
}

// isNowIgnored re-checks the policy after a failed resolution: a token
// blacklisted mid-resolution nulls out the whole side.
func (m *Merger) isNowIgnored(order *models.Order) bool {
	return m.policy != nil && m.policy.ShouldIgnore(order.TokenIn, order.TokenOut, order.ID)
}
