package types

import (
	"fmt"
	"time"
)

type Entity string

const (
	Sales     Entity = "sales"
	Purchases Entity = "purchases"
	Products  Entity = "products"
	Stock     Entity = "stock"
	Sellers   Entity = "sellers"
	Suppliers Entity = "suppliers"
)

type SyncMode string

const (
	// FULLSNAPSHOT replaces the mirror with the obtain-all endpoint on every
	// cycle. Used for reference data without a change timestamp.
	FULLSNAPSHOT SyncMode = "full-snapshot"
	// DELTA fetches only records changed since the persisted cursor.
	DELTA SyncMode = "delta-since-cursor"
)

// Stream is one independently scheduled synchronization unit. Streams are
// defined statically at configuration time and never change at runtime.
type Stream struct {
	Entity   Entity        `json:"entity"`
	Mode     SyncMode      `json:"mode"`
	Interval time.Duration `json:"interval"`
	// ChunkDays is the backfill window width in days. Zero means the stream
	// backfills with a single obtain-all snapshot.
	ChunkDays int `json:"chunk_days"`
}

func (s Stream) ID() string {
	return string(s.Entity)
}

func (s Stream) String() string {
	return fmt.Sprintf("%s[%s]", s.Entity, s.Mode)
}

type Phase string

const (
	BackfillPhase    Phase = "backfill"
	IncrementalPhase Phase = "incremental"
	FetchPhase       Phase = "fetch"
	TransformPhase   Phase = "transform"
	PersistPhase     Phase = "persist"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// SyncRun is the ephemeral record of one cycle for one stream. It exists
// only to be journaled; it is never persisted beyond the log.
type SyncRun struct {
	ID        string
	Stream    Entity
	Phase     Phase
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	Records   int
	Skipped   int
	Err       error
}
