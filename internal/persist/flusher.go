// Package persist writes the workspace state to storage in the background.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/starford/lattice/internal/state"
	"github.com/starford/lattice/internal/storage"
)

const finalFlushTimeout = 10 * time.Second

// Flusher saves the store to a provider on a fixed interval whenever the
// folders or items changed since the last save. Selection changes are not
// persisted.
type Flusher struct {
	store    *state.Store
	db       storage.Provider
	interval time.Duration
	logger   *slog.Logger

	dirty atomic.Bool

	mu     sync.Mutex // serialises saves and guards latest
	latest *state.State
}

// New creates a flusher. interval must be positive.
func New(store *state.Store, db storage.Provider, interval time.Duration, logger *slog.Logger) *Flusher {
	return &Flusher{store: store, db: db, interval: interval, logger: logger}
}

// Run subscribes to the store and flushes on a gocron schedule until ctx is
// cancelled, then performs a final flush.
func (f *Flusher) Run(ctx context.Context) error {
	sub := f.store.Subscribe()
	defer f.store.Unsubscribe(sub)

	scheduler := gocron.NewScheduler(time.Local)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(f.interval).WaitForSchedule().Do(f.flushJob); err != nil {
		return fmt.Errorf("persist: schedule: %w", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	f.logger.Info("flusher: started", slog.Duration("interval", f.interval))

	for {
		select {
		case <-ctx.Done():
			scheduler.Stop()
			flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			err := f.Flush(flushCtx)
			cancel()
			if err != nil {
				f.logger.Error("flusher: final flush failed", slog.String("error", err.Error()))
				return err
			}
			f.logger.Info("flusher: stopped")
			return nil

		case c, ok := <-sub:
			if !ok {
				// Store closed; write what we have.
				return f.Flush(context.Background())
			}
			if len(c.Kinds) == 0 {
				continue
			}
			f.mu.Lock()
			st := c.State
			f.latest = &st
			f.mu.Unlock()
			f.dirty.Store(true)
		}
	}
}

func (f *Flusher) flushJob() {
	ctx, cancel := context.WithTimeout(context.Background(), f.interval)
	defer cancel()
	if err := f.Flush(ctx); err != nil {
		f.logger.Warn("flusher: flush failed", slog.String("error", err.Error()))
	}
}

// Flush saves the current state if it is dirty. The live store is preferred;
// after the store has closed the last observed state is saved instead.
func (f *Flusher) Flush(ctx context.Context) error {
	if !f.dirty.Swap(false) {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.store.Snapshot(ctx)
	switch {
	case errors.Is(err, state.ErrClosed) && f.latest != nil:
		snap = *f.latest
	case err != nil:
		f.dirty.Store(true)
		return fmt.Errorf("persist: snapshot: %w", err)
	}

	if err := f.db.Save(ctx, snap.Folders, snap.Items); err != nil {
		f.dirty.Store(true)
		return fmt.Errorf("persist: save: %w", err)
	}
	f.logger.Debug("flusher: saved",
		slog.Int("folders", len(snap.Folders)),
		slog.Int("items", len(snap.Items)))
	return nil
}
