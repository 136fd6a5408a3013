package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/pointerquest/engine/internal/domain"
)

// flushRequest pairs a state snapshot with the version it captures.
type flushRequest struct {
	snap    *domain.Snapshot
	version uint64
}

// Flusher owns the asynchronous persistence path. Requests are
// fire-and-forget: the caller never blocks on storage and never sees a
// storage error. A failed flush is logged and the store stays dirty, so
// the next mutation's flush request is the retry; there is no immediate
// retry loop. A circuit breaker stops a persistently failing backend
// from being hammered on every keystroke.
type Flusher struct {
	store   SnapshotStore
	origin  *Store
	breaker circuitbreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger

	// requests has capacity 1 and carries the newest pending snapshot;
	// a fresher request displaces a stale queued one.
	requests chan flushRequest
	done     chan struct{}

	closeOnce sync.Once
}

// NewFlusher creates a flusher writing to the given store and starts
// its worker.
func NewFlusher(store SnapshotStore, origin *Store, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Flusher{
		store:    store,
		origin:   origin,
		logger:   logger,
		requests: make(chan flushRequest, 1),
		done:     make(chan struct{}),
	}

	f.breaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			f.logger.Warn("persistence circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	go f.run()
	return f
}

// Request queues the current state for persistence and returns
// immediately. Must not be called after Close.
func (f *Flusher) Request() {
	snap, version := f.origin.snapshotVersioned()
	req := flushRequest{snap: snap, version: version}

	for {
		select {
		case f.requests <- req:
			return
		default:
		}
		// Queue full: drop the stale pending request, keep the newest.
		select {
		case <-f.requests:
		default:
		}
	}
}

// FlushNow persists the current state synchronously, bypassing both the
// queue and the circuit breaker. Used for shutdown and for explicit
// save commands where the caller wants the error.
func (f *Flusher) FlushNow() error {
	snap, version := f.origin.snapshotVersioned()
	if err := f.store.Save(snap); err != nil {
		return err
	}
	f.origin.markSaved(version)
	return nil
}

// Close drains any pending request and stops the worker.
func (f *Flusher) Close() {
	f.closeOnce.Do(func() {
		close(f.requests)
	})
	<-f.done
}

func (f *Flusher) run() {
	defer close(f.done)

	for req := range f.requests {
		f.flush(req)
	}
}

func (f *Flusher) flush(req flushRequest) {
	_, err := f.breaker.Execute(context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.store.Save(req.snap)
	})
	if err != nil {
		// Swallowed by contract: in-memory state stays authoritative,
		// the store stays dirty, the next request retries.
		f.logger.Warn("progress flush failed", "error", err)
		return
	}
	f.origin.markSaved(req.version)
}
