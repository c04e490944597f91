package checkin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/config"
	"github.com/nexis-health/nexis-backend/internal/store"
)

type queueItem struct {
	entryID uuid.UUID
	userID  uuid.UUID
}

// ProcessFunc analyzes one queued entry.
type ProcessFunc func(ctx context.Context, entryID, userID uuid.UUID)

// Queue is a fixed-size worker pool for background analysis. A periodic sweep
// re-enqueues pending entries older than the stale timeout, so dropped or
// lost dispatches are retried rather than stuck.
type Queue struct {
	jobs         chan queueItem
	store        store.Store
	process      ProcessFunc
	workers      int
	staleTimeout time.Duration
	sweepEvery   time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewQueue creates a worker queue. Call Start before enqueuing.
func NewQueue(cfg config.WorkerConfig, st store.Store, process ProcessFunc) *Queue {
	return &Queue{
		jobs:         make(chan queueItem, cfg.QueueSize),
		store:        st,
		process:      process,
		workers:      cfg.Count,
		staleTimeout: cfg.StaleTimeout,
		sweepEvery:   cfg.SweepEvery,
	}
}

// Start launches the workers and the reconciliation sweeper.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx)
	}

	q.wg.Add(1)
	go q.sweeper(runCtx)

	slog.Info("analysis workers started", "workers", q.workers, "queue_size", cap(q.jobs))
}

// Stop signals the workers and waits for in-flight analyses to land in a
// terminal state.
func (q *Queue) Stop() {
	q.once.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		q.wg.Wait()
	})
}

// Enqueue hands an entry to the workers. Returns false when the queue is full.
func (q *Queue) Enqueue(entryID, userID uuid.UUID) bool {
	select {
	case q.jobs <- queueItem{entryID: entryID, userID: userID}:
		return true
	default:
		return false
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.jobs:
			// Detach from shutdown so a terminal status always gets written.
			q.process(context.WithoutCancel(ctx), item.entryID, item.userID)
		}
	}
}

func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweep(ctx)
		}
	}
}

// sweep re-enqueues pending entries that nobody picked up.
func (q *Queue) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-q.staleTimeout)
	stale, err := q.store.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("reconciliation sweep failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	requeued := 0
	for _, entry := range stale {
		if q.Enqueue(entry.ID, entry.UserID) {
			requeued++
		}
	}
	slog.Info("reconciliation sweep", "stale", len(stale), "requeued", requeued)
}
