package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
)

// Checkpoint loads the durable sync state of one stream. A stream that has
// never run returns a zero-value checkpoint with an empty cursor.
func (s *Store) Checkpoint(ctx context.Context, stream types.Entity) (types.Checkpoint, error) {
	var cp types.Checkpoint
	err := s.db.GetContext(ctx, &cp,
		`SELECT stream, cursor, backfill_complete, updated_at FROM sync_state WHERE stream = ?`, stream)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Checkpoint{Stream: stream}, nil
	}
	if err != nil {
		return types.Checkpoint{}, errs.Persistence.Wrap(err, "failed to load checkpoint for %s", stream)
	}
	return cp, nil
}

// AdvanceCursor moves a stream's cursor forward. The guard keeps the cursor
// monotonic: a stale writer cannot move it backwards.
func (s *Store) AdvanceCursor(ctx context.Context, stream types.Entity, cursor string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (stream, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(stream) DO UPDATE SET
			cursor     = excluded.cursor,
			updated_at = excluded.updated_at
		WHERE excluded.cursor > sync_state.cursor`,
		stream, cursor, time.Now().UTC())
	if err != nil {
		return errs.Persistence.Wrap(err, "failed to advance cursor for %s", stream)
	}
	return nil
}

// MarkBackfillComplete flips the stream from historical backfill into
// incremental mode.
func (s *Store) MarkBackfillComplete(ctx context.Context, stream types.Entity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (stream, backfill_complete, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(stream) DO UPDATE SET
			backfill_complete = 1,
			updated_at        = excluded.updated_at`,
		stream, time.Now().UTC())
	if err != nil {
		return errs.Persistence.Wrap(err, "failed to mark backfill complete for %s", stream)
	}
	return nil
}

// ResetCheckpoint wipes a stream's sync state so the next cycle starts from
// the historical start date. Mirror rows are left untouched; the upserts are
// idempotent.
func (s *Store) ResetCheckpoint(ctx context.Context, stream types.Entity) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_state WHERE stream = ?`, stream)
	if err != nil {
		return errs.Persistence.Wrap(err, "failed to reset checkpoint for %s", stream)
	}
	return nil
}

// Checkpoints lists the sync state of every stream that has run at least
// once, used by the check command.
func (s *Store) Checkpoints(ctx context.Context) ([]types.Checkpoint, error) {
	var cps []types.Checkpoint
	err := s.db.SelectContext(ctx, &cps,
		`SELECT stream, cursor, backfill_complete, updated_at FROM sync_state ORDER BY stream`)
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to list checkpoints")
	}
	return cps, nil
}
