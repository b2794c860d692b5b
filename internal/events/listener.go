package events

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/models"
	"github.com/usemate/order-stats-api/internal/orders"
	"github.com/usemate/order-stats-api/internal/storage"
)

const mateCoreABI = `[
	{
		"type": "event",
		"name": "OrderPlaced",
		"inputs": [
			{"internalType": "bytes32", "name": "id", "type": "bytes32", "indexed": true},
			{"internalType": "address", "name": "tokenIn", "type": "address", "indexed": false},
			{"internalType": "address", "name": "tokenOut", "type": "address", "indexed": false},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256", "indexed": false},
			{"internalType": "address", "name": "recipient", "type": "address", "indexed": false},
			{"internalType": "address", "name": "creator", "type": "address", "indexed": false},
			{"internalType": "uint256", "name": "expiration", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "createdTimestamp", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderCanceled",
		"inputs": [
			{"internalType": "bytes32", "name": "id", "type": "bytes32", "indexed": true},
			{"internalType": "uint256", "name": "timestamp", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderExecuted",
		"inputs": [
			{"internalType": "bytes32", "name": "id", "type": "bytes32", "indexed": true},
			{"internalType": "address", "name": "creator", "type": "address", "indexed": false},
			{"internalType": "address", "name": "sender", "type": "address", "indexed": false},
			{"internalType": "uint256", "name": "amountOut", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "timestamp", "type": "uint256", "indexed": false}
		]
	}
]`

// Event signatures
var (
	orderPlacedSig   = crypto.Keccak256Hash([]byte("OrderPlaced(bytes32,address,address,uint256,uint256,address,address,uint256,uint256)"))
	orderCanceledSig = crypto.Keccak256Hash([]byte("OrderCanceled(bytes32,uint256)"))
	orderExecutedSig = crypto.Keccak256Hash([]byte("OrderExecuted(bytes32,address,address,uint256,uint256)"))
)

// ChainReader is the slice of the ethclient surface the listener needs.
type ChainReader interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// BatchRunner triggers a full reconciliation scan.
type BatchRunner interface {
	RunBatch(ctx context.Context) error
}

// ListenerConfig holds configuration for the event listener.
type ListenerConfig struct {
	Client       ChainReader
	CoreAddress  string
	Merger       orders.Reconciler
	Store        storage.OrderStore
	Scheduler    BatchRunner
	PollInterval time.Duration
	FromBlock    uint64
	Logger       *logrus.Logger
}

// Listener polls the order contract's logs and routes each event kind
// into the merger or a direct field update.
type Listener struct {
	client    ChainReader
	core      common.Address
	abi       abi.ABI
	merger    orders.Reconciler
	store     storage.OrderStore
	scheduler BatchRunner
	interval  time.Duration
	logger    *logrus.Logger

	mu        sync.Mutex
	lastBlock uint64
	running   bool
}

func NewListener(cfg ListenerConfig) (*Listener, error) {
	parsed, err := abi.JSON(strings.NewReader(mateCoreABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse core ABI: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Listener{
		client:    cfg.Client,
		core:      common.HexToAddress(cfg.CoreAddress),
		abi:       parsed,
		merger:    cfg.Merger,
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		interval:  cfg.PollInterval,
		logger:    cfg.Logger,
		lastBlock: cfg.FromBlock,
	}, nil
}

// Start polls for new order events until ctx is canceled.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.WithFields(logrus.Fields{
		"contract": l.core.Hex(),
		"interval": l.interval,
	}).Info("starting order event polling")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.poll(ctx); err != nil {
				l.logger.WithError(err).Error("event poll failed")
			}
		}
	}
}

func (l *Listener) poll(ctx context.Context) error {
	latest, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	l.mu.Lock()
	from := l.lastBlock + 1
	if l.lastBlock == 0 {
		from = latest
	}
	l.mu.Unlock()

	if from > latest {
		return nil
	}

	logs, err := l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{l.core},
		Topics:    [][]common.Hash{{orderPlacedSig, orderCanceledSig, orderExecutedSig}},
	})
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	for _, entry := range logs {
		l.handleLog(ctx, entry)
	}

	l.mu.Lock()
	l.lastBlock = latest
	l.mu.Unlock()
	return nil
}

func (l *Listener) handleLog(ctx context.Context, entry types.Log) {
	if len(entry.Topics) < 2 {
		return
	}
	switch entry.Topics[0] {
	case orderPlacedSig:
		l.handlePlaced(ctx, entry)
	case orderCanceledSig:
		l.handleCanceled(ctx, entry)
	case orderExecutedSig:
		l.handleExecuted(ctx, entry)
	}
}

// handlePlaced builds a minimal open order record from the event and
// hands it to the merger; there is no local counterpart yet.
func (l *Listener) handlePlaced(ctx context.Context, entry types.Log) {
	id := entry.Topics[1].Hex()
	l.logger.WithField("order", id).Info("order placed")

	values, err := l.abi.Unpack("OrderPlaced", entry.Data)
	if err != nil {
		l.logger.WithError(err).WithField("order", id).Error("failed to decode OrderPlaced")
		return
	}

	remote := models.RemoteOrder{
		ID:                     id,
		Status:                 models.StatusOpen,
		TokenIn:                values[0].(common.Address).Hex(),
		TokenOut:               values[1].(common.Address).Hex(),
		AmountIn:               values[2].(*big.Int).String(),
		AmountOutMin:           values[3].(*big.Int).String(),
		Creator:                values[5].(common.Address).Hex(),
		CreatedTimestamp:       values[7].(*big.Int).String(),
		CreatedBlockNumber:     fmt.Sprintf("%d", entry.BlockNumber),
		CreatedTransactionHash: entry.TxHash.Hex(),
	}

	if _, err := l.merger.ReconcileOrder(ctx, remote); err != nil {
		l.logger.WithError(err).WithField("order", id).Error("failed to reconcile placed order")
	}
}

// handleCanceled is a direct field update; no valuation work happens.
func (l *Listener) handleCanceled(ctx context.Context, entry types.Log) {
	id := entry.Topics[1].Hex()
	l.logger.WithField("order", id).Info("order canceled")

	values, err := l.abi.Unpack("OrderCanceled", entry.Data)
	if err != nil {
		l.logger.WithError(err).WithField("order", id).Error("failed to decode OrderCanceled")
		return
	}

	err = l.store.UpdateFields(ctx, id, map[string]any{
		"status":              models.StatusCanceled,
		"canceledTimestamp":   values[0].(*big.Int).String(),
		"canceledBlockNumber": fmt.Sprintf("%d", entry.BlockNumber),
	})
	if err != nil {
		l.logger.WithError(err).WithField("order", id).Error("could not update canceled order")
	}
}

// handleExecuted closes the local record and resolves the execution
// side. If the order is not known yet the event outran reconciliation,
// and a full batch run is the safe recovery.
func (l *Listener) handleExecuted(ctx context.Context, entry types.Log) {
	id := entry.Topics[1].Hex()
	l.logger.WithField("order", id).Info("order executed")

	values, err := l.abi.Unpack("OrderExecuted", entry.Data)
	if err != nil {
		l.logger.WithError(err).WithField("order", id).Error("failed to decode OrderExecuted")
		return
	}

	local, err := l.store.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		if err := l.scheduler.RunBatch(ctx); err != nil {
			l.logger.WithError(err).Error("recovery batch failed")
		}
		return
	}
	if err != nil {
		l.logger.WithError(err).WithField("order", id).Error("could not load executed order")
		return
	}

	remote := remoteFromOrder(local)
	remote.Status = models.StatusClosed
	remote.RecievedAmount = values[2].(*big.Int).String()
	remote.ExecutedTimestamp = values[3].(*big.Int).String()
	remote.ExecutedBlockNumber = fmt.Sprintf("%d", entry.BlockNumber)
	remote.ExecutedTransactionHash = entry.TxHash.Hex()

	if _, err := l.merger.ReconcileOrder(ctx, remote); err != nil {
		l.logger.WithError(err).WithField("order", id).Error("failed to reconcile executed order")
	}
}

func remoteFromOrder(order *models.Order) models.RemoteOrder {
	return models.RemoteOrder{
		ID:                      order.ID,
		CreatedTimestamp:        order.CreatedTimestamp,
		ExecutedTimestamp:       order.ExecutedTimestamp,
		CanceledTimestamp:       order.CanceledTimestamp,
		Status:                  order.Status,
		Creator:                 order.Creator,
		TokenIn:                 order.TokenIn,
		TokenOut:                order.TokenOut,
		AmountIn:                order.AmountIn,
		AmountOutMin:            order.AmountOutMin,
		RecievedAmount:          order.RecievedAmount,
		CreatedBlockNumber:      order.CreatedBlockNumber,
		ExecutedBlockNumber:     order.ExecutedBlockNumber,
		CreatedTransactionHash:  order.CreatedTransactionHash,
		ExecutedTransactionHash: order.ExecutedTransactionHash,
	}
}
