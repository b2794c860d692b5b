package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Task is one unit of enrichment work.
type Task func(ctx context.Context)

// State is a diagnostic snapshot of the queue.
type State struct {
	Pending int  `json:"pending"`
	Running int  `json:"running"`
	IsEmpty bool `json:"isEmpty"`
}

// Queue runs tasks with at most Concurrency in flight and a minimum
// interval between task starts. It is the system's only throttle
// against the price source's rate limits. Pending tasks can be cleared
// when a newer scan supersedes them; tasks already started always run
// to completion.
type Queue struct {
	limiter *rate.Limiter
	sem     chan struct{}
	logger  *logrus.Logger

	mu      sync.Mutex
	pending []Task
	running int
	wake    chan struct{}
}

func New(concurrency int, interval time.Duration, logger *logrus.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Queue{
		limiter: rate.NewLimiter(limit, 1),
		sem:     make(chan struct{}, concurrency),
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Start runs the dispatcher until ctx is canceled.
func (q *Queue) Start(ctx context.Context) {
	go q.dispatch(ctx)
}

// Enqueue appends a task to the pending list.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Clear drops all not-yet-started tasks. In-flight tasks are
// unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.WithField("dropped", dropped).Info("queue cleared")
	}
}

// Size returns the number of pending tasks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Snapshot returns a diagnostic view of the queue.
func (q *Queue) Snapshot() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State{
		Pending: len(q.pending),
		Running: q.running,
		IsEmpty: len(q.pending) == 0 && q.running == 0,
	}
}

func (q *Queue) dispatch(ctx context.Context) {
	for {
		task := q.pop()
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case q.sem <- struct{}{}:
		}

		// Wait for the limiter only once a slot is free, so the minimum
		// spacing is measured between actual task starts. Waiting before
		// the slot would let a long-running task bank a token and the
		// next two tasks start back-to-back.
		if err := q.limiter.Wait(ctx); err != nil {
			<-q.sem
			return
		}

		q.mu.Lock()
		q.running++
		q.mu.Unlock()

		go func(task Task) {
			defer func() {
				q.mu.Lock()
				q.running--
				q.mu.Unlock()
				<-q.sem
			}()
			task(ctx)
		}(task)
	}
}

func (q *Queue) pop() Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	return task
}
