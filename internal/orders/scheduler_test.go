package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usemate/order-stats-api/internal/models"
	"github.com/usemate/order-stats-api/internal/queue"
	"github.com/usemate/order-stats-api/internal/storage"
)

type fakeSource struct {
	orders []models.RemoteOrder
	err    error
	calls  int
}

func (f *fakeSource) AllOrders(ctx context.Context) ([]models.RemoteOrder, error) {
	f.calls++
	return f.orders, f.err
}

type recordingReconciler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingReconciler) ReconcileOrder(ctx context.Context, remote models.RemoteOrder) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, remote.ID)
	order := remote.AsOrder()
	return &order, nil
}

func (r *recordingReconciler) reconciled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.ids...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func enriched(order models.Order, executed bool) models.Order {
	order.CreatedBlock = &models.BlockData{
		Amounts: models.BlockAmounts{AmountIn: "100", AmountOutMin: "95"},
	}
	if executed {
		order.ExecutedBlock = &models.BlockData{
			Amounts: models.BlockAmounts{AmountOutMin: "95", Recieved: "110"},
		}
	}
	return order
}

func TestScheduler_EnqueuesUnknownAndUnpopulated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()

	// Known and fully enriched open order: skipped.
	complete := enriched(models.RemoteOrder{ID: "0x01", Status: models.StatusOpen}.AsOrder(), false)
	require.NoError(t, store.Insert(ctx, &complete))

	// Known open order with only amountIn resolved: re-enqueued.
	partial := models.RemoteOrder{ID: "0x02", Status: models.StatusOpen}.AsOrder()
	partial.CreatedBlock = &models.BlockData{Amounts: models.BlockAmounts{AmountIn: "100"}}
	require.NoError(t, store.Insert(ctx, &partial))

	source := &fakeSource{orders: []models.RemoteOrder{
		{ID: "0x01", Status: models.StatusOpen},
		{ID: "0x02", Status: models.StatusOpen},
		{ID: "0x03", Status: models.StatusOpen}, // unknown: enqueued
	}}

	rec := &recordingReconciler{}
	q := queue.New(1, 0, nil)
	q.Start(ctx)

	s := NewScheduler(source, store, rec, q, nil)
	require.NoError(t, s.RunBatch(ctx))

	waitFor(t, func() bool { return len(rec.reconciled()) == 2 })
	assert.ElementsMatch(t, []string{"0x02", "0x03"}, rec.reconciled())
}

func TestScheduler_ClosedOrderNeedsExecutedSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()

	// Creation snapshot complete but execution side missing.
	created := enriched(models.RemoteOrder{ID: "0x10", Status: models.StatusClosed}.AsOrder(), false)
	require.NoError(t, store.Insert(ctx, &created))

	// Both sides complete.
	full := enriched(models.RemoteOrder{ID: "0x11", Status: models.StatusClosed}.AsOrder(), true)
	require.NoError(t, store.Insert(ctx, &full))

	source := &fakeSource{orders: []models.RemoteOrder{
		{ID: "0x10", Status: models.StatusClosed},
		{ID: "0x11", Status: models.StatusClosed},
	}}

	rec := &recordingReconciler{}
	q := queue.New(1, 0, nil)
	q.Start(ctx)

	s := NewScheduler(source, store, rec, q, nil)
	require.NoError(t, s.RunBatch(ctx))

	waitFor(t, func() bool { return len(rec.reconciled()) == 1 })
	assert.Equal(t, []string{"0x10"}, rec.reconciled())
}

func TestScheduler_CanceledOrdersAlwaysPopulated(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	canceled := models.RemoteOrder{ID: "0x20", Status: models.StatusCanceled}.AsOrder()
	require.NoError(t, store.Insert(ctx, &canceled))

	source := &fakeSource{orders: []models.RemoteOrder{
		{ID: "0x20", Status: models.StatusCanceled},
	}}

	q := queue.New(1, 0, nil)
	s := NewScheduler(source, store, &recordingReconciler{}, q, nil)
	require.NoError(t, s.RunBatch(ctx))

	assert.Equal(t, 0, q.Size(), "canceled orders get no enrichment work")
}

func TestScheduler_CaseInsensitiveIDMatch(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	complete := enriched(models.RemoteOrder{ID: "0xAbCd", Status: models.StatusOpen}.AsOrder(), false)
	require.NoError(t, store.Insert(ctx, &complete))

	source := &fakeSource{orders: []models.RemoteOrder{
		{ID: "0xABCD", Status: models.StatusOpen},
	}}

	q := queue.New(1, 0, nil)
	s := NewScheduler(source, store, &recordingReconciler{}, q, nil)
	require.NoError(t, s.RunBatch(ctx))

	assert.Equal(t, 0, q.Size())
}

func TestScheduler_RemoteFailureAbortsBatch(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	source := &fakeSource{err: errors.New("subgraph down")}

	q := queue.New(1, 0, nil)
	s := NewScheduler(source, store, &recordingReconciler{}, q, nil)

	err := s.RunBatch(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, q.Size())
}

func TestScheduler_NewBatchSupersedesPending(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	source := &fakeSource{orders: []models.RemoteOrder{
		{ID: "0x30", Status: models.StatusOpen},
		{ID: "0x31", Status: models.StatusOpen},
	}}

	// Queue is never started: tasks stay pending.
	q := queue.New(1, time.Hour, nil)
	s := NewScheduler(source, store, &recordingReconciler{}, q, nil)

	require.NoError(t, s.RunBatch(ctx))
	assert.Equal(t, 2, q.Size())

	source.orders = []models.RemoteOrder{{ID: "0x32", Status: models.StatusOpen}}
	require.NoError(t, s.RunBatch(ctx))
	assert.Equal(t, 1, q.Size(), "newer scan supersedes the stale pending work")
}
