package types

import "time"

// Checkpoint is the durable per-stream sync state. The cursor is an opaque
// string: RFC3339 for time cursors, a calendar date for backfill windows.
// Invariant: a checkpoint only moves after the batch it covers has been
// committed to the mirror.
type Checkpoint struct {
	Stream           Entity    `db:"stream" json:"stream"`
	Cursor           string    `db:"cursor" json:"cursor"`
	BackfillComplete bool      `db:"backfill_complete" json:"backfill_complete"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CursorTime parses the cursor as a point in time. A zero time is returned
// for an unset cursor so callers can seed from the historical start date.
func (c Checkpoint) CursorTime() time.Time {
	if c.Cursor == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, c.Cursor); err == nil {
			return t
		}
	}
	return time.Time{}
}
