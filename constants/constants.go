package constants

import "time"

const (
	// DataDir is the viper key holding the resolved data directory; the
	// logger and journal derive their paths from it.
	DataDir = "DATA_DIR"

	// PageSize is the gateway page window (quantidadeRegistros).
	PageSize = 999

	// DefaultRetryCount bounds in-cycle fetch retries; anything still
	// failing waits for the next scheduled tick.
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 10 * time.Second

	DefaultRequestTimeout = 30 * time.Second
	DefaultCommitTimeout  = time.Minute

	// DefaultChunkDays is the backfill window width for windowed streams.
	DefaultChunkDays = 10

	// OrphanRetention bounds how long an unmatched cancellation is kept
	// for re-resolution before being dropped.
	OrphanRetention = 30 * 24 * time.Hour

	StoreFileName   = "sgf_mirror.sqlite"
	JournalFileName = "sync.log"
)
