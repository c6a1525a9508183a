package engine

import (
	"context"
	"time"

	"github.com/fariaslabs/sgfsync/constants"
	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/source"
	"github.com/fariaslabs/sgfsync/transform"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

// syncOnce runs one complete cycle for a stream: historical backfill until
// it is marked complete, incremental delta afterwards.
func (e *Engine) syncOnce(ctx context.Context, stream types.Stream) types.SyncRun {
	run := types.SyncRun{
		ID:        utils.ULID(),
		Stream:    stream.Entity,
		Phase:     types.IncrementalPhase,
		StartedAt: time.Now().UTC(),
	}

	cp, err := e.store.Checkpoint(ctx, stream.Entity)
	if err != nil {
		run.Err = err
		run.Outcome = types.OutcomeFailure
		run.Duration = time.Since(run.StartedAt)
		return run
	}

	var records, skipped int
	if !cp.BackfillComplete {
		run.Phase = types.BackfillPhase
		records, skipped, err = e.backfill(ctx, stream, cp)
	} else {
		records, skipped, err = e.incremental(ctx, stream, cp)
	}

	run.Records = records
	run.Skipped = skipped
	run.Err = err
	run.Duration = time.Since(run.StartedAt)
	switch {
	case err != nil:
		run.Outcome = types.OutcomeFailure
	case skipped > 0:
		run.Outcome = types.OutcomePartial
	default:
		run.Outcome = types.OutcomeSuccess
	}
	return run
}

// incremental syncs everything changed since the stream's cursor. The
// cursor only advances after every page of the window has been committed,
// so a crash mid-window re-fetches the window and the idempotent upserts
// absorb the replay.
func (e *Engine) incremental(ctx context.Context, stream types.Stream, cp types.Checkpoint) (int, int, error) {
	now := time.Now().UTC()

	if stream.Mode == types.FULLSNAPSHOT {
		records, skipped, err := e.snapshot(ctx, stream.Entity, now)
		if err != nil {
			return records, skipped, err
		}
		return records, skipped, e.store.AdvanceCursor(context.WithoutCancel(ctx), stream.Entity, now.Format(time.RFC3339))
	}

	from := cp.CursorTime()
	if from.IsZero() {
		from = e.cfg.HistoricalStartTime()
	}

	records, skipped, err := e.syncWindow(ctx, stream.Entity, from, now)
	if err != nil {
		return records, skipped, err
	}
	if err := e.store.AdvanceCursor(context.WithoutCancel(ctx), stream.Entity, now.Format(time.RFC3339)); err != nil {
		return records, skipped, err
	}

	if stream.Entity == types.Sales {
		cutoff := now.Add(-constants.OrphanRetention)
		if pruned, err := e.store.PruneOrphans(ctx, cutoff); err != nil {
			logger.Warnf("stream %s: orphan prune failed: %s", stream, err)
		} else if pruned > 0 {
			logger.Infof("stream %s: pruned %d orphan cancellations older than %s", stream, pruned, cutoff.Format("2006-01-02"))
		}
	}
	return records, skipped, nil
}

// syncWindow fetches and persists one [from, to] delta window page by page.
// Each page is its own transaction; the sales window additionally replays
// the cancellation feed for the same dates.
func (e *Engine) syncWindow(ctx context.Context, entity types.Entity, from, to time.Time) (int, int, error) {
	it, err := e.fetcher.ChangedBetween(entity, from, to)
	if err != nil {
		return 0, 0, err
	}

	records, skipped, err := e.drain(ctx, it, func(ctx context.Context, page []types.RawRecord) (int, int, error) {
		return e.persistPage(ctx, entity, page, to)
	})
	if err != nil {
		return records, skipped, err
	}

	if entity == types.Sales {
		n, k, err := e.syncCancellations(ctx, from, to)
		records += n
		skipped += k
		if err != nil {
			return records, skipped, err
		}
	}
	return records, skipped, nil
}

// syncCancellations fetches the cancellation feed for a window and nets it
// against mirrored sales. Cancellations whose sale is missing everywhere
// stay in the store as unresolved orphans.
func (e *Engine) syncCancellations(ctx context.Context, from, to time.Time) (int, int, error) {
	it, err := e.fetcher.Cancellations(from, to)
	if err != nil {
		return 0, 0, err
	}

	return e.drain(ctx, it, func(ctx context.Context, page []types.RawRecord) (int, int, error) {
		cancels, skipped := transform.Cancellations(page)
		if len(cancels) == 0 {
			return 0, len(skipped), nil
		}

		invoices := make([]int64, 0, len(cancels))
		for _, cancel := range cancels {
			invoices = append(invoices, cancel.InvoiceNumber)
		}
		stored, err := e.store.SalesByInvoice(ctx, invoices)
		if err != nil {
			return 0, len(skipped), err
		}

		netted, orphans := transform.ApplyCancellations(nil, cancels, saleIndex(stored))
		if len(orphans) > 0 {
			logger.Debugf("%d cancellations have no mirrored sale yet", len(orphans))
		}

		persistCtx, cancel := commitCtx(ctx)
		defer cancel()
		if err := e.store.UpsertSales(persistCtx, netted); err != nil {
			return 0, len(skipped), err
		}
		if err := e.store.UpsertCancellations(persistCtx, cancels); err != nil {
			return 0, len(skipped), err
		}
		return len(cancels), len(skipped), nil
	})
}

// drain walks an iterator and hands each page to persist, stopping on the
// first error. The in-flight page finishes its commit even during shutdown;
// only the fetch loop observes cancellation.
func (e *Engine) drain(ctx context.Context, it source.Iterator, persist func(context.Context, []types.RawRecord) (int, int, error)) (int, int, error) {
	var records, skipped int
	for it.Next(ctx) {
		n, k, err := persist(ctx, it.Records())
		records += n
		skipped += k
		if err != nil {
			return records, skipped, err
		}
	}
	return records, skipped, it.Err()
}

// commitCtx detaches a persist call from shutdown cancellation while still
// bounding how long one commit may take.
func commitCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultCommitTimeout)
}

// persistPage transforms one raw page and commits it in a single
// transaction. snapshotAt stamps records whose wire format carries no
// change timestamp.
func (e *Engine) persistPage(ctx context.Context, entity types.Entity, page []types.RawRecord, snapshotAt time.Time) (int, int, error) {
	persistCtx, cancel := commitCtx(ctx)
	defer cancel()

	switch entity {
	case types.Sales:
		sales, skipped := transform.Sales(page)
		return len(sales), len(skipped), e.store.UpsertSales(persistCtx, sales)
	case types.Purchases:
		purchases, skipped := transform.Purchases(page)
		return len(purchases), len(skipped), e.store.UpsertPurchases(persistCtx, purchases)
	case types.Products:
		products, skipped := transform.Products(page)
		return len(products), len(skipped), e.store.UpsertProducts(persistCtx, products)
	case types.Stock:
		levels, skipped := transform.StockLevels(page)
		return len(levels), len(skipped), e.store.UpsertStockLevels(persistCtx, levels)
	case types.Suppliers:
		suppliers, skipped := transform.Suppliers(page, snapshotAt)
		return len(suppliers), len(skipped), e.store.UpsertSuppliers(persistCtx, suppliers)
	default:
		return 0, 0, nil
	}
}

// snapshot replaces reference data from the obtain-all endpoint. Only the
// seller stream uses it on every cycle; delta streams use it for their
// initial load.
func (e *Engine) snapshot(ctx context.Context, entity types.Entity, now time.Time) (int, int, error) {
	it, err := e.fetcher.All(entity)
	if err != nil {
		return 0, 0, err
	}

	if entity == types.Sellers {
		// the full list replaces the table atomically, so gather all pages
		// before touching the store
		var raws []types.RawRecord
		for it.Next(ctx) {
			raws = append(raws, it.Records()...)
		}
		if err := it.Err(); err != nil {
			return 0, 0, err
		}
		sellers, skipped := transform.Sellers(raws, now)
		persistCtx, cancel := commitCtx(ctx)
		defer cancel()
		return len(sellers), len(skipped), e.store.ReplaceSellers(persistCtx, sellers)
	}

	return e.drain(ctx, it, func(ctx context.Context, page []types.RawRecord) (int, int, error) {
		return e.persistPage(ctx, entity, page, now)
	})
}

// saleIndex adapts a sales-by-invoice map to the lookup the netting
// transform consumes.
type saleIndex map[int64]types.Sale

func (m saleIndex) Sale(invoiceNumber int64) (types.Sale, bool) {
	sale, found := m[invoiceNumber]
	return sale, found
}
