package engine

import (
	"context"
	"time"

	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

// backfill performs the historical load for a stream that has not finished
// it yet. High-volume streams walk fixed-width date windows from the
// historical start, committing the cursor after every window so a restart
// resumes at the first unfinished window. Everything else loads in one
// snapshot.
func (e *Engine) backfill(ctx context.Context, stream types.Stream, cp types.Checkpoint) (int, int, error) {
	now := time.Now().UTC()

	if stream.ChunkDays <= 0 {
		records, skipped, err := e.backfillSnapshot(ctx, stream, now)
		if err != nil {
			return records, skipped, err
		}
		return records, skipped, e.finishBackfill(ctx, stream.Entity, now)
	}

	start := utils.MaxTime(cp.CursorTime(), e.cfg.HistoricalStartTime())
	width := time.Duration(stream.ChunkDays) * 24 * time.Hour

	var records, skipped int
	for windowStart := start; windowStart.Before(now); {
		windowEnd := utils.MinTime(windowStart.Add(width), now)
		logger.Infof("stream %s: backfilling window %s .. %s",
			stream, windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"))

		n, k, err := e.syncWindow(ctx, stream.Entity, windowStart, windowEnd)
		records += n
		skipped += k
		if err != nil {
			return records, skipped, err
		}
		if err := e.store.AdvanceCursor(context.WithoutCancel(ctx), stream.Entity, windowEnd.Format(time.RFC3339)); err != nil {
			return records, skipped, err
		}
		windowStart = windowEnd
	}

	return records, skipped, e.finishBackfill(ctx, stream.Entity, now)
}

// backfillSnapshot is the one-shot initial load for streams without date
// windows. Streams lacking an obtain-all endpoint load a single delta
// spanning the whole history instead.
func (e *Engine) backfillSnapshot(ctx context.Context, stream types.Stream, now time.Time) (int, int, error) {
	switch stream.Entity {
	case types.Stock:
		return e.syncWindow(ctx, stream.Entity, e.cfg.HistoricalStartTime(), now)
	default:
		return e.snapshot(ctx, stream.Entity, now)
	}
}

func (e *Engine) finishBackfill(ctx context.Context, entity types.Entity, now time.Time) error {
	persistCtx := context.WithoutCancel(ctx)
	if err := e.store.MarkBackfillComplete(persistCtx, entity); err != nil {
		return err
	}
	if err := e.store.AdvanceCursor(persistCtx, entity, now.Format(time.RFC3339)); err != nil {
		return err
	}
	logger.Infof("stream %s: backfill complete", entity)
	return nil
}
