package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/models"
	"github.com/usemate/order-stats-api/internal/storage"
)

// bscTokenDecimals is used to express raw subgraph amounts in native
// units for the aggregate totals. The tracked pairs are all 18-decimal
// BEP-20 tokens.
const bscTokenDecimals = 18

const leaderboardSize = 15

// IgnorePolicy filters blacklisted orders out of every projection.
type IgnorePolicy interface {
	ShouldIgnore(tokenIn, tokenOut, orderID string) bool
}

// ExecutedTotals aggregates the fully enriched closed orders.
type ExecutedTotals struct {
	AmountIn                   string `json:"amountIn"`
	RecievedAmount             string `json:"recievedAmount"`
	AmountOutMinAmount         string `json:"amountOutMinAmount"`
	RecievedAmountTotal        string `json:"recievedAmountTotal"`
	AmountOutMinTotal          string `json:"amountOutMinTotal"`
	RecievedIncreasePercentage string `json:"recievedIncreasePercentage"`
}

// Overview is the aggregate order book picture. USD figures come from
// the valuation snapshots; orders without a resolved valuation are
// excluded from the sums rather than counted as zero.
type Overview struct {
	OrderCount         int            `json:"orderCount"`
	OpenOrderCount     int            `json:"openOrderCount"`
	ExecutedOrderCount int            `json:"executedOrderCount"`
	CanceledOrderCount int            `json:"canceledOrderCount"`
	ExpiredOrderCount  int            `json:"expiredOrderCount"`
	CurrentlyLocked    string         `json:"currentlyLocked"`
	TotalLocked        string         `json:"totalLocked"`
	AverageOrderSize   string         `json:"averageOrderSize"`
	IgnoredTokens      []string       `json:"ignoredTokens"`
	Executed           ExecutedTotals `json:"executed"`
}

// Leaderboard holds the top-N projections over executed orders plus the
// biggest currently open orders by locked USD value.
type Leaderboard struct {
	LargestOrders          []models.Order `json:"largestOrders"`
	BiggestSavesPercentage []models.Order `json:"biggestSavesPercentage"`
	BiggestSavesUsd        []models.Order `json:"biggestSavesUsd"`
	BiggestOpenOrders      []models.Order `json:"biggestOpenOrders"`
}

// TokenUsage counts how often a token appears on each side of an order.
type TokenUsage struct {
	Count struct {
		In  int `json:"in"`
		Out int `json:"out"`
	} `json:"count"`
}

// TokenLister supplies the blacklisted token list for the overview.
type TokenLister interface {
	Tokens() []string
}

// Service computes read-only projections over the committed order set.
type Service struct {
	store  storage.OrderStore
	policy IgnorePolicy
	tokens TokenLister
	logger *logrus.Logger
}

func NewService(store storage.OrderStore, policy IgnorePolicy, tokens TokenLister, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{store: store, policy: policy, tokens: tokens, logger: logger}
}

func (s *Service) ignored(order models.Order) bool {
	if order.IsIgnored {
		return true
	}
	return s.policy != nil && s.policy.ShouldIgnore(order.TokenIn, order.TokenOut, order.ID)
}

// ExecutedOrders returns the closed orders whose valuation snapshots
// are complete enough to aggregate: creation-side amountIn and
// amountOutMin plus execution-side recieved, blacklist excluded.
func (s *Service) ExecutedOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.FindByStatus(ctx, models.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("load closed orders: %w", err)
	}

	out := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if s.ignored(order) {
			continue
		}
		if !order.CreatedComplete() {
			continue
		}
		if order.ExecutedBlock == nil || !models.HasValue(order.ExecutedBlock.Amounts.Recieved) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// Defects returns closed orders that should carry complete snapshots
// but do not. They point at valuation gaps worth investigating.
func (s *Service) Defects(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.FindByStatus(ctx, models.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("load closed orders: %w", err)
	}

	out := make([]models.Order, 0)
	for _, order := range orders {
		if s.ignored(order) {
			continue
		}
		if order.CreatedComplete() && order.ExecutedComplete() {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	orders, err := s.store.FindAll(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("load orders: %w", err)
	}
	executed, err := s.ExecutedOrders(ctx)
	if err != nil {
		return Overview{}, err
	}

	var open, canceled int
	currentlyLocked := decimal.Zero
	totalLocked := decimal.Zero
	for _, order := range orders {
		switch order.Status {
		case models.StatusOpen:
			open++
		case models.StatusCanceled:
			canceled++
		}

		if order.CreatedBlock == nil {
			continue
		}
		locked, ok := parseAmount(order.CreatedBlock.Amounts.AmountIn)
		if !ok {
			continue
		}
		totalLocked = totalLocked.Add(locked)
		if order.Status == models.StatusOpen {
			currentlyLocked = currentlyLocked.Add(locked)
		}
	}

	amountInUsd := decimal.Zero
	amountOutMinUsd := decimal.Zero
	recievedUsd := decimal.Zero
	amountOutMinNative := decimal.Zero
	recievedNative := decimal.Zero
	for _, order := range executed {
		if v, ok := parseAmount(order.CreatedBlock.Amounts.AmountIn); ok {
			amountInUsd = amountInUsd.Add(v)
		}
		if v, ok := parseAmount(order.CreatedBlock.Amounts.AmountOutMin); ok {
			amountOutMinUsd = amountOutMinUsd.Add(v)
		}
		if v, ok := parseAmount(order.ExecutedBlock.Amounts.Recieved); ok {
			recievedUsd = recievedUsd.Add(v)
		}
		if v, ok := parseAmount(order.AmountOutMin); ok {
			amountOutMinNative = amountOutMinNative.Add(v.Shift(-bscTokenDecimals))
		}
		if v, ok := parseAmount(order.RecievedAmount); ok {
			recievedNative = recievedNative.Add(v.Shift(-bscTokenDecimals))
		}
	}

	increase := "0"
	if !amountOutMinNative.IsZero() {
		increase = recievedNative.
			Div(amountOutMinNative).
			Mul(decimal.NewFromInt(100)).
			Sub(decimal.NewFromInt(100)).
			Round(4).
			String()
	}

	average := "0"
	if len(executed) > 0 {
		sum := decimal.Zero
		for _, order := range executed {
			if v, ok := parseAmount(order.ExecutedBlock.Amounts.Recieved); ok {
				sum = sum.Add(v)
			}
		}
		average = sum.Div(decimal.NewFromInt(int64(len(executed)))).Round(0).String()
	}

	var ignoredTokens []string
	if s.tokens != nil {
		ignoredTokens = s.tokens.Tokens()
	}

	return Overview{
		OrderCount:         len(orders),
		OpenOrderCount:     open,
		ExecutedOrderCount: len(executed),
		CanceledOrderCount: canceled,
		ExpiredOrderCount:  len(orders) - open - len(executed) - canceled,
		CurrentlyLocked:    currentlyLocked.Round(6).String(),
		TotalLocked:        totalLocked.Round(6).String(),
		AverageOrderSize:   average,
		IgnoredTokens:      ignoredTokens,
		Executed: ExecutedTotals{
			AmountIn:                   amountInUsd.String(),
			RecievedAmount:             recievedUsd.String(),
			AmountOutMinAmount:         amountOutMinUsd.String(),
			RecievedAmountTotal:        recievedNative.String(),
			AmountOutMinTotal:          amountOutMinNative.String(),
			RecievedIncreasePercentage: increase,
		},
	}, nil
}

func (s *Service) Leaderboard(ctx context.Context) (Leaderboard, error) {
	executed, err := s.ExecutedOrders(ctx)
	if err != nil {
		return Leaderboard{}, err
	}

	largest := topBy(executed, func(o models.Order) (decimal.Decimal, bool) {
		return parseAmount(o.ExecutedBlock.Amounts.Recieved)
	})
	savesPct := topBy(executed, func(o models.Order) (decimal.Decimal, bool) {
		return parseDecimal(o.SavedPercentage)
	})
	savesUsd := topBy(executed, func(o models.Order) (decimal.Decimal, bool) {
		return parseDecimal(o.SavedUsd)
	})

	openOrders, err := s.biggestOpen(ctx)
	if err != nil {
		return Leaderboard{}, err
	}

	return Leaderboard{
		LargestOrders:          largest,
		BiggestSavesPercentage: savesPct,
		BiggestSavesUsd:        savesUsd,
		BiggestOpenOrders:      openOrders,
	}, nil
}

func (s *Service) biggestOpen(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.FindByStatus(ctx, models.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}

	eligible := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if s.ignored(order) || !order.CreatedComplete() {
			continue
		}
		eligible = append(eligible, order)
	}

	return topBy(eligible, func(o models.Order) (decimal.Decimal, bool) {
		return parseAmount(o.CreatedBlock.Amounts.AmountIn)
	}), nil
}

// LatestUpdated returns the most recently touched orders, newest
// first. An order's update time is its cancelation, execution or
// creation timestamp, whichever applies last.
func (s *Service) LatestUpdated(ctx context.Context, limit int) ([]models.Order, error) {
	orders, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return updatedAt(orders[i]).GreaterThan(updatedAt(orders[j]))
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Service) TokenUsage(ctx context.Context) (map[string]*TokenUsage, error) {
	orders, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	usage := make(map[string]*TokenUsage)
	get := func(token string) *TokenUsage {
		token = models.NormalizeID(token)
		if usage[token] == nil {
			usage[token] = &TokenUsage{}
		}
		return usage[token]
	}

	for _, order := range orders {
		if order.TokenIn != "" {
			get(order.TokenIn).Count.In++
		}
		if order.TokenOut != "" {
			get(order.TokenOut).Count.Out++
		}
	}
	return usage, nil
}

func updatedAt(order models.Order) decimal.Decimal {
	for _, ts := range []string{order.CanceledTimestamp, order.ExecutedTimestamp, order.CreatedTimestamp} {
		if v, ok := parseDecimal(ts); ok {
			return v
		}
	}
	return decimal.Zero
}

// parseAmount parses a snapshot amount. "" and "0" mean unresolved and
// never contribute to a sum.
func parseAmount(v string) (decimal.Decimal, bool) {
	if !models.HasValue(v) {
		return decimal.Decimal{}, false
	}
	return parseDecimal(v)
}

func parseDecimal(v string) (decimal.Decimal, bool) {
	if v == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// topBy sorts descending by the extracted value and keeps the top 15.
// Orders whose value does not parse are dropped.
func topBy(orders []models.Order, value func(models.Order) (decimal.Decimal, bool)) []models.Order {
	type ranked struct {
		order models.Order
		value decimal.Decimal
	}
	entries := make([]ranked, 0, len(orders))
	for _, order := range orders {
		v, ok := value(order)
		if !ok {
			continue
		}
		entries = append(entries, ranked{order: order, value: v})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].value.GreaterThan(entries[j].value)
	})
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	out := make([]models.Order, len(entries))
	for i, e := range entries {
		out[i] = e.order
	}
	return out
}
