package orders

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/models"
	"github.com/usemate/order-stats-api/internal/queue"
	"github.com/usemate/order-stats-api/internal/storage"
)

// OrderSource is the canonical remote order list.
type OrderSource interface {
	AllOrders(ctx context.Context) ([]models.RemoteOrder, error)
}

// Reconciler merges one remote record into the local store.
type Reconciler interface {
	ReconcileOrder(ctx context.Context, remote models.RemoteOrder) (*models.Order, error)
}

// Scheduler diffs the remote order set against local state and feeds
// every incompletely-enriched order into the rate-limited queue.
type Scheduler struct {
	source OrderSource
	store  storage.OrderStore
	merger Reconciler
	queue  *queue.Queue
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(source OrderSource, store storage.OrderStore, merger Reconciler, q *queue.Queue, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		source: source,
		store:  store,
		merger: merger,
		queue:  q,
		logger: logger,
	}
}

// RunBatch reconciles the full remote order set. A still-draining queue
// from a previous run is cleared first: the newer scan supersedes
// stale in-flight work. A remote fetch failure aborts the whole batch;
// local state is untouched and the next scheduled run retries.
func (s *Scheduler) RunBatch(ctx context.Context) error {
	s.queue.Clear()

	remote, err := s.source.AllOrders(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch remote orders, batch aborted")
		return err
	}

	local, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to load local orders, batch aborted")
		return err
	}

	byID := make(map[string]models.Order, len(local))
	for _, order := range local {
		byID[models.NormalizeID(order.ID)] = order
	}

	enqueued := 0
	for _, order := range remote {
		if alreadyPopulated(order, byID) {
			continue
		}
		order := order
		s.queue.Enqueue(func(ctx context.Context) {
			if _, err := s.merger.ReconcileOrder(ctx, order); err != nil {
				s.logger.WithError(err).WithField("order", order.ID).Error("reconcile failed")
			}
		})
		enqueued++
	}

	s.logger.WithFields(logrus.Fields{
		"remote":   len(remote),
		"local":    len(local),
		"enqueued": enqueued,
	}).Info("batch scheduled")
	return nil
}

// Run triggers RunBatch immediately and then on every tick until ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.RunBatch(ctx); err != nil {
		s.logger.WithError(err).Error("initial batch failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunBatch(ctx); err != nil {
				s.logger.WithError(err).Error("scheduled batch failed")
			}
		}
	}
}

// QueueState exposes queue diagnostics for the reporting surface.
func (s *Scheduler) QueueState() queue.State {
	return s.queue.Snapshot()
}

// alreadyPopulated reports whether a remote order needs no enrichment
// work: unknown orders never qualify, open orders need a complete
// creation snapshot, closed orders additionally need a complete
// execution snapshot, canceled orders are always done.
func alreadyPopulated(remote models.RemoteOrder, local map[string]models.Order) bool {
	order, ok := local[models.NormalizeID(remote.ID)]
	if !ok {
		return false
	}

	switch remote.Status {
	case models.StatusCanceled:
		return true
	case models.StatusClosed:
		return order.CreatedComplete() && order.ExecutedComplete()
	default:
		return order.CreatedComplete()
	}
}
