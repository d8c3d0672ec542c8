package worker

import (
	"context"
	"time"

	"sjsage522/grocerydeals/logger"
	"sjsage522/grocerydeals/services/deals"
	"sjsage522/grocerydeals/services/publisher"
)

// Syncer runs store syncs
type Syncer interface {
	SyncStore(ctx context.Context, storeID int) deals.SyncResult
	SyncAll(ctx context.Context) []deals.SyncResult
}

// Worker syncs stores and publishes each outcome for the persistence layer
type Worker struct {
	syncer       Syncer
	publisher    publisher.Publisher
	syncInterval time.Duration
	log          *logger.Logger
}

// NewWorker creates a new worker. pub may be nil when publishing is
// disabled.
func NewWorker(syncer Syncer, pub publisher.Publisher, syncInterval time.Duration) *Worker {
	return &Worker{
		syncer:       syncer,
		publisher:    pub,
		syncInterval: syncInterval,
		log:          logger.ForWorker(),
	}
}

// Start syncs all stores every interval until ctx is done
func (w *Worker) Start(ctx context.Context) {
	if w.syncInterval <= 0 {
		w.log.Info().Msg("Periodic sync disabled")
		return
	}

	for {
		start := time.Now()
		results := w.SyncAll(ctx)
		w.log.Info().
			Int("stores", len(results)).
			Dur("elapsed", time.Since(start)).
			Msg("Sync round finished")

		timer := time.NewTimer(w.syncInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Worker stopped")
			return
		case <-timer.C:
		}
	}
}

// SyncAll syncs every store, publishes the results and trims the stream
func (w *Worker) SyncAll(ctx context.Context) []deals.SyncResult {
	results := w.syncer.SyncAll(ctx)
	for _, r := range results {
		w.publish(ctx, r)
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}
	return results
}

// SyncStore syncs one store and publishes the result
func (w *Worker) SyncStore(ctx context.Context, storeID int) deals.SyncResult {
	result := w.syncer.SyncStore(ctx, storeID)
	w.publish(ctx, result)
	return result
}

func (w *Worker) publish(ctx context.Context, r deals.SyncResult) {
	event := w.log.Info()
	if !r.OK() {
		event = w.log.Warn().Str("error", r.Error)
	}
	event.Int("store_id", r.StoreID).
		Str("store", r.StoreName).
		Str("status", r.Status).
		Int("deals", len(r.Deals)).
		Msg("Store synced")

	if w.publisher == nil {
		return
	}
	if err := publisher.PublishEvent(ctx, w.publisher, r); err != nil {
		w.log.Error().Err(err).Int("store_id", r.StoreID).Msg("Failed to publish sync event")
	}
}
