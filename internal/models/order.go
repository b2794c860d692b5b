package models

import "strings"

// OrderStatus mirrors the status values reported by the Mate subgraph.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "Open"
	StatusClosed   OrderStatus = "Closed"
	StatusCanceled OrderStatus = "Canceled"
)

// BlockAmounts holds the USD-resolved amounts of an order at one block
// height. Values are decimal strings; "" or "0" means not yet resolved,
// never a valuation of zero.
type BlockAmounts struct {
	AmountIn     string `bson:"amountIn,omitempty" json:"amountIn,omitempty"`
	AmountOutMin string `bson:"amountOutMin,omitempty" json:"amountOutMin,omitempty"`
	Recieved     string `bson:"recieved,omitempty" json:"recieved,omitempty"`
}

// BlockPrices holds the raw USD unit prices used for the resolution, so
// they need not be fetched again.
type BlockPrices struct {
	TokenIn  string `bson:"tokenIn,omitempty" json:"tokenIn,omitempty"`
	TokenOut string `bson:"tokenOut,omitempty" json:"tokenOut,omitempty"`
}

// BlockData is the valuation snapshot of an order at a single block
// height: one is attached at the creation block, one at the execution
// block.
type BlockData struct {
	Amounts BlockAmounts `bson:"amounts" json:"amounts"`
	Prices  BlockPrices  `bson:"prices" json:"prices"`
}

// RemoteOrder is an order record as returned by the remote order
// source. It carries identity and status fields only; valuation
// snapshots exist purely on the local side.
//
// The "recieved" spelling is the upstream subgraph schema and is kept
// verbatim on the wire.
type RemoteOrder struct {
	ID                      string      `json:"id"`
	CreatedTimestamp        string      `json:"createdTimestamp"`
	ExecutedTimestamp       string      `json:"executedTimestamp,omitempty"`
	CanceledTimestamp       string      `json:"canceledTimestamp,omitempty"`
	Status                  OrderStatus `json:"status"`
	Creator                 string      `json:"creator"`
	TokenIn                 string      `json:"tokenIn"`
	TokenOut                string      `json:"tokenOut"`
	AmountIn                string      `json:"amountIn"`
	AmountOutMin            string      `json:"amountOutMin"`
	RecievedAmount          string      `json:"recievedAmount,omitempty"`
	CreatedBlockNumber      string      `json:"createdBlockNumber"`
	ExecutedBlockNumber     string      `json:"executedBlockNumber,omitempty"`
	CreatedTransactionHash  string      `json:"createdTransactionHash,omitempty"`
	ExecutedTransactionHash string      `json:"executedTransactionHash,omitempty"`
}

// Order is the persisted, enriched order record. Remote identity and
// status fields are authoritative and always overwritten on merge;
// snapshot and savings fields are monotonically filled in and never
// cleared once present.
type Order struct {
	ID                      string      `bson:"id" json:"id"`
	CreatedTimestamp        string      `bson:"createdTimestamp" json:"createdTimestamp"`
	ExecutedTimestamp       string      `bson:"executedTimestamp,omitempty" json:"executedTimestamp,omitempty"`
	CanceledTimestamp       string      `bson:"canceledTimestamp,omitempty" json:"canceledTimestamp,omitempty"`
	Status                  OrderStatus `bson:"status" json:"status"`
	Creator                 string      `bson:"creator" json:"creator"`
	TokenIn                 string      `bson:"tokenIn" json:"tokenIn"`
	TokenOut                string      `bson:"tokenOut" json:"tokenOut"`
	AmountIn                string      `bson:"amountIn" json:"amountIn"`
	AmountOutMin            string      `bson:"amountOutMin" json:"amountOutMin"`
	RecievedAmount          string      `bson:"recievedAmount,omitempty" json:"recievedAmount,omitempty"`
	CreatedBlockNumber      string      `bson:"createdBlockNumber" json:"createdBlockNumber"`
	ExecutedBlockNumber     string      `bson:"executedBlockNumber,omitempty" json:"executedBlockNumber,omitempty"`
	CanceledBlockNumber     string      `bson:"canceledBlockNumber,omitempty" json:"canceledBlockNumber,omitempty"`
	CreatedTransactionHash  string      `bson:"createdTransactionHash,omitempty" json:"createdTransactionHash,omitempty"`
	ExecutedTransactionHash string      `bson:"executedTransactionHash,omitempty" json:"executedTransactionHash,omitempty"`

	CreatedBlock  *BlockData `bson:"createdBlock,omitempty" json:"createdBlock,omitempty"`
	ExecutedBlock *BlockData `bson:"executedBlock,omitempty" json:"executedBlock,omitempty"`

	SavedPercentage string `bson:"savedPercentage,omitempty" json:"savedPercentage,omitempty"`
	SavedUsd        string `bson:"savedUsd,omitempty" json:"savedUsd,omitempty"`

	IsIgnored bool `bson:"isIgnored,omitempty" json:"isIgnored,omitempty"`
}

// HasValue reports whether a snapshot field is present. Empty and the
// literal "0" both mean "not yet resolved".
func HasValue(v string) bool {
	return v != "" && v != "0"
}

// Value returns v if present, otherwise "".
func Value(v string) string {
	if !HasValue(v) {
		return ""
	}
	return v
}

// NormalizeID lowercases an order identifier. Identifier equality is
// case-insensitive throughout the system.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}

// CreatedComplete reports whether the creation-side snapshot has both
// of its required amounts resolved.
func (o *Order) CreatedComplete() bool {
	return o.CreatedBlock != nil &&
		HasValue(o.CreatedBlock.Amounts.AmountIn) &&
		HasValue(o.CreatedBlock.Amounts.AmountOutMin)
}

// ExecutedComplete reports whether the execution-side snapshot has both
// of its required amounts resolved.
func (o *Order) ExecutedComplete() bool {
	return o.ExecutedBlock != nil &&
		HasValue(o.ExecutedBlock.Amounts.AmountOutMin) &&
		HasValue(o.ExecutedBlock.Amounts.Recieved)
}

// Populated reports whether the order needs no further enrichment.
// Canceled orders are always treated as populated.
func (o *Order) Populated() bool {
	switch o.Status {
	case StatusCanceled:
		return true
	case StatusClosed:
		return o.CreatedComplete() && o.ExecutedComplete()
	default:
		return o.CreatedComplete()
	}
}

// HasSavings reports whether savings figures have already been derived.
func (o *Order) HasSavings() bool {
	return o.SavedPercentage != "" && o.SavedUsd != ""
}

// AsOrder lifts a remote record into a local one with empty snapshots.
func (r RemoteOrder) AsOrder() Order {
	return Order{
		ID:                      r.ID,
		CreatedTimestamp:        r.CreatedTimestamp,
		ExecutedTimestamp:       r.ExecutedTimestamp,
		CanceledTimestamp:       r.CanceledTimestamp,
		Status:                  r.Status,
		Creator:                 r.Creator,
		TokenIn:                 r.TokenIn,
		TokenOut:                r.TokenOut,
		AmountIn:                r.AmountIn,
		AmountOutMin:            r.AmountOutMin,
		RecievedAmount:          r.RecievedAmount,
		CreatedBlockNumber:      r.CreatedBlockNumber,
		ExecutedBlockNumber:     r.ExecutedBlockNumber,
		CreatedTransactionHash:  r.CreatedTransactionHash,
		ExecutedTransactionHash: r.ExecutedTransactionHash,
	}
}
