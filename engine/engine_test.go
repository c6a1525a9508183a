package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariaslabs/sgfsync/config"
	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/source"
	"github.com/fariaslabs/sgfsync/store"
	"github.com/fariaslabs/sgfsync/types"
)

type fakeIterator struct {
	pages [][]types.RawRecord
	cur   []types.RawRecord
	err   error
}

func (f *fakeIterator) Next(_ context.Context) bool {
	if len(f.pages) == 0 {
		return false
	}
	f.cur = f.pages[0]
	f.pages = f.pages[1:]
	return true
}

func (f *fakeIterator) Records() []types.RawRecord { return f.cur }
func (f *fakeIterator) Err() error                 { return f.err }

type window struct{ from, to time.Time }

// fakeFetcher serves canned pages and records every delta window it was
// asked for.
type fakeFetcher struct {
	mu      sync.Mutex
	windows map[types.Entity][]window

	salesPages  [][]types.RawRecord
	cancelPages [][]types.RawRecord
	allPages    map[types.Entity][][]types.RawRecord

	// failSalesCall makes the nth sales delta call fail (1-based, 0 = never)
	failSalesCall int
	salesCalls    int
	failEntity    types.Entity
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		windows:  map[types.Entity][]window{},
		allPages: map[types.Entity][][]types.RawRecord{},
	}
}

func (f *fakeFetcher) All(entity types.Entity) (source.Iterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entity == f.failEntity && entity != "" {
		return nil, errs.Transient.New("gateway down")
	}
	return &fakeIterator{pages: f.allPages[entity]}, nil
}

func (f *fakeFetcher) ChangedBetween(entity types.Entity, from, to time.Time) (source.Iterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entity == f.failEntity && entity != "" {
		return nil, errs.Transient.New("gateway down")
	}
	f.windows[entity] = append(f.windows[entity], window{from, to})
	if entity == types.Sales {
		f.salesCalls++
		if f.failSalesCall > 0 && f.salesCalls == f.failSalesCall {
			return nil, errs.Transient.New("gateway down")
		}
		pages := f.salesPages
		f.salesPages = nil
		return &fakeIterator{pages: pages}, nil
	}
	return &fakeIterator{}, nil
}

func (f *fakeFetcher) Cancellations(_, _ time.Time) (source.Iterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := f.cancelPages
	f.cancelPages = nil
	return &fakeIterator{pages: pages}, nil
}

func (f *fakeFetcher) salesWindows() []window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]window(nil), f.windows[types.Sales]...)
}

func testEngine(t *testing.T, fetcher source.Fetcher, historicalStart string) (*Engine, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		APIBaseURL:      "http://gateway.test/sgfpod1",
		AuthToken:       "token",
		DataDir:         dir,
		HistoricalStart: historicalStart,
	}
	require.NoError(t, cfg.Validate())

	st, err := store.Open(context.Background(), cfg.StorePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	journal, err := OpenJournal(cfg.JournalPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	return New(cfg, fetcher, st, journal), st
}

func salesStream(chunkDays int) types.Stream {
	return types.Stream{Entity: types.Sales, Mode: types.DELTA, Interval: time.Minute, ChunkDays: chunkDays}
}

func rawSale(invoice int64) types.RawRecord {
	return types.RawRecord{
		"numeroNota":         invoice,
		"dataHora":           "2026-08-01 10:30:00",
		"dataAlteracao":      "2026-08-01 11:00:00",
		"quantidadeProdutos": 10,
		"valorTotalBruto":    200,
	}
}

func TestBackfillWalksContiguousWindows(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.salesPages = [][]types.RawRecord{{rawSale(100)}}

	start := time.Now().UTC().AddDate(0, 0, -25)
	e, st := testEngine(t, fetcher, start.Format("2006-01-02"))

	run := e.syncOnce(context.Background(), salesStream(10))
	require.NoError(t, run.Err)
	assert.Equal(t, types.BackfillPhase, run.Phase)
	assert.Equal(t, types.OutcomeSuccess, run.Outcome)

	windows := fetcher.salesWindows()
	require.Len(t, windows, 3) // 25 days in 10-day chunks
	for i, w := range windows {
		assert.LessOrEqual(t, w.to.Sub(w.from), 10*24*time.Hour)
		if i > 0 {
			assert.Equal(t, windows[i-1].to, w.from, "windows must be contiguous")
		}
	}

	cp, err := st.Checkpoint(context.Background(), types.Sales)
	require.NoError(t, err)
	assert.True(t, cp.BackfillComplete)

	stored, err := st.SalesByInvoice(context.Background(), []int64{100})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestBackfillResumesFromLastCommittedWindow(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failSalesCall = 3

	start := time.Now().UTC().AddDate(0, 0, -25)
	e, st := testEngine(t, fetcher, start.Format("2006-01-02"))
	ctx := context.Background()

	run := e.syncOnce(ctx, salesStream(10))
	require.Error(t, run.Err)
	assert.Equal(t, types.OutcomeFailure, run.Outcome)

	cp, err := st.Checkpoint(ctx, types.Sales)
	require.NoError(t, err)
	assert.False(t, cp.BackfillComplete)
	resumeAt := cp.CursorTime()
	require.False(t, resumeAt.IsZero())

	// next cycle picks up at the first unfinished window
	fetcher.failSalesCall = 0
	run = e.syncOnce(ctx, salesStream(10))
	require.NoError(t, run.Err)

	windows := fetcher.salesWindows()
	resumed := windows[3] // two committed, one failed, then the resume
	assert.Equal(t, resumeAt, resumed.from)

	cp, err = st.Checkpoint(ctx, types.Sales)
	require.NoError(t, err)
	assert.True(t, cp.BackfillComplete)
}

func TestIncrementalAdvancesCursorAfterCommit(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.salesPages = [][]types.RawRecord{{rawSale(200)}}

	e, st := testEngine(t, fetcher, "2026-01-01")
	ctx := context.Background()

	require.NoError(t, st.MarkBackfillComplete(ctx, types.Sales))
	require.NoError(t, st.AdvanceCursor(ctx, types.Sales, "2026-08-20T00:00:00Z"))

	run := e.syncOnce(ctx, salesStream(10))
	require.NoError(t, run.Err)
	assert.Equal(t, types.IncrementalPhase, run.Phase)

	windows := fetcher.salesWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), windows[0].from)

	cp, err := st.Checkpoint(ctx, types.Sales)
	require.NoError(t, err)
	assert.True(t, cp.CursorTime().After(windows[0].from))

	stored, err := st.SalesByInvoice(ctx, []int64{200})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIncrementalFailureLeavesCursorUntouched(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failSalesCall = 1

	e, st := testEngine(t, fetcher, "2026-01-01")
	ctx := context.Background()

	require.NoError(t, st.MarkBackfillComplete(ctx, types.Sales))
	require.NoError(t, st.AdvanceCursor(ctx, types.Sales, "2026-08-20T00:00:00Z"))

	run := e.syncOnce(ctx, salesStream(10))
	require.Error(t, run.Err)

	cp, err := st.Checkpoint(ctx, types.Sales)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20T00:00:00Z", cp.Cursor)
}

func TestCancellationFromLaterCycleNetsStoredSale(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.salesPages = [][]types.RawRecord{{rawSale(300)}}

	e, st := testEngine(t, fetcher, "2026-01-01")
	ctx := context.Background()
	require.NoError(t, st.MarkBackfillComplete(ctx, types.Sales))
	require.NoError(t, st.AdvanceCursor(ctx, types.Sales, "2026-08-20T00:00:00Z"))

	run := e.syncOnce(ctx, salesStream(10))
	require.NoError(t, run.Err)

	// the cancellation arrives a cycle later, referencing the mirrored sale
	fetcher.cancelPages = [][]types.RawRecord{{
		{"numeroNota": 300, "tipoCancelamento": "D", "quantidadeProdutos": 4, "valorTotalLiquido": 80, "dataEmissao": "2026-08-21 09:00:00"},
	}}
	run = e.syncOnce(ctx, salesStream(10))
	require.NoError(t, run.Err)

	stored, err := st.SalesByInvoice(ctx, []int64{300})
	require.NoError(t, err)
	sale := stored[300]
	assert.Equal(t, types.SaleStatusReturned, sale.Status)
	assert.Equal(t, 6.0, sale.NetQuantity())
	assert.Equal(t, 120.0, sale.NetValue())
}

func TestSellersSnapshotReplacesEveryCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.allPages[types.Sellers] = [][]types.RawRecord{{
		{"codigo": 1, "nome": "MARIA"},
		{"codigo": 2, "nome": "JOSE"},
	}}

	e, st := testEngine(t, fetcher, "2026-01-01")
	ctx := context.Background()
	stream := types.Stream{Entity: types.Sellers, Mode: types.FULLSNAPSHOT, Interval: time.Minute}

	run := e.syncOnce(ctx, stream)
	require.NoError(t, run.Err)
	assert.Equal(t, 2, run.Records)

	fetcher.mu.Lock()
	fetcher.allPages[types.Sellers] = [][]types.RawRecord{{{"codigo": 3, "nome": "ANA"}}}
	fetcher.mu.Unlock()

	run = e.syncOnce(ctx, stream)
	require.NoError(t, run.Err)

	counts, err := st.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["sellers"])
}

func TestStreamsStayIsolated(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failEntity = types.Purchases
	fetcher.salesPages = [][]types.RawRecord{{rawSale(400)}}

	e, st := testEngine(t, fetcher, time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	// purchases kept failing, sales still completed its backfill
	cp, err := st.Checkpoint(context.Background(), types.Purchases)
	require.NoError(t, err)
	assert.False(t, cp.BackfillComplete)

	cp, err = st.Checkpoint(context.Background(), types.Sales)
	require.NoError(t, err)
	assert.True(t, cp.BackfillComplete)

	stored, err := st.SalesByInvoice(context.Background(), []int64{400})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestJournalRecordsOneLinePerCycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.log")
	journal, err := OpenJournal(path)
	require.NoError(t, err)

	require.NoError(t, journal.Record(types.SyncRun{
		ID:        "01TEST",
		Stream:    types.Sales,
		Phase:     types.IncrementalPhase,
		StartedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Outcome:   types.OutcomeSuccess,
		Records:   42,
	}))
	require.NoError(t, journal.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(content)
	assert.Contains(t, line, "stream=sales")
	assert.Contains(t, line, "phase=incremental")
	assert.Contains(t, line, "outcome=success")
	assert.Contains(t, line, "records=42")
}
