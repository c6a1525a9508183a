package engine

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
)

// Journal is the append-only plain-text log of sync cycles, one line per
// cycle. It is the operational audit trail next to the structured log:
// greppable, tail-able, and independent of log rotation.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.Config.Wrap(err, "failed to open sync journal %s", path)
	}
	return &Journal{f: f}, nil
}

// Record appends one cycle line. Journal failures never fail a cycle; the
// mirror commit already happened.
func (j *Journal) Record(run types.SyncRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line := fmt.Sprintf("%s run=%s stream=%s phase=%s outcome=%s records=%d skipped=%d duration=%s",
		run.StartedAt.UTC().Format(time.RFC3339),
		run.ID, run.Stream, run.Phase, run.Outcome,
		run.Records, run.Skipped, run.Duration.Round(time.Millisecond))
	if run.Err != nil {
		line += fmt.Sprintf(" err=%q", run.Err.Error())
	}

	_, err := fmt.Fprintln(j.f, line)
	return err
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
