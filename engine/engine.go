// Package engine owns the synchronization loop: one goroutine per stream,
// each alternating fetch, transform and persist, with durable per-stream
// checkpoints. Streams are isolated; a failing stream backs off to its next
// tick without touching its siblings.
package engine

import (
	"context"
	"time"

	"github.com/fariaslabs/sgfsync/config"
	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/source"
	"github.com/fariaslabs/sgfsync/store"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

type Engine struct {
	cfg     *config.Config
	fetcher source.Fetcher
	store   *store.Store
	journal *Journal
}

func New(cfg *config.Config, fetcher source.Fetcher, st *store.Store, journal *Journal) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		journal: journal,
	}
}

// Run starts one worker per configured stream and blocks until ctx is
// cancelled and every worker has drained. It never returns a stream error;
// stream failures are journaled and retried on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	streams := e.cfg.Streams()
	logger.Infof("starting sync engine %s with %d streams", e.cfg.SyncID(), len(streams))

	workers := make([]func() error, 0, len(streams))
	for _, stream := range streams {
		workers = append(workers, func() error {
			e.worker(ctx, stream)
			return nil
		})
	}
	// workers only ever return nil; stream failures are journaled, not
	// propagated, so one stream can never tear down its siblings
	err := utils.ErrExec(workers...)

	logger.Info("sync engine stopped")
	return err
}

// worker drives one stream: an immediate first cycle, then one cycle per
// interval tick. Cycles never overlap; a slow cycle delays the next tick
// rather than running concurrently with it.
func (e *Engine) worker(ctx context.Context, stream types.Stream) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("stream %s stopped: %s", stream, ctx.Err())
			return
		case <-timer.C:
		}

		run := e.syncOnce(ctx, stream)
		if err := e.journal.Record(run); err != nil {
			logger.Warnf("stream %s: journal write failed: %s", stream, err)
		}

		switch {
		case run.Err == nil:
			logger.Infof("stream %s %s cycle done: %d records (%d skipped) in %s",
				stream, run.Phase, run.Records, run.Skipped, run.Duration.Round(time.Millisecond))
		case errs.IsAuth(run.Err):
			// a rejected token will not heal on retry
			logger.Errorf("stream %s: authentication failed, stopping stream: %s", stream, run.Err)
			return
		case ctx.Err() != nil:
			logger.Infof("stream %s stopped mid-cycle: %s", stream, ctx.Err())
			return
		default:
			logger.Errorf("stream %s cycle failed, retrying next tick: %s", stream, run.Err)
		}

		timer.Reset(stream.Interval)
	}
}
