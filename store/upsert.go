package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
)

// Upserts are keyed by the natural business identifier and resolve
// conflicts replace-if-newer on the record timestamp, which makes
// reapplying any batch idempotent. Each method runs in its own single
// transaction.

const upsertSaleSQL = `
	INSERT INTO sales (invoice_number, sold_at, seller_code, status, payment_terms,
		gross_quantity, gross_value, cost_value, discount_value, record_ts)
	VALUES (:invoice_number, :sold_at, :seller_code, :status, :payment_terms,
		:gross_quantity, :gross_value, :cost_value, :discount_value, :record_ts)
	ON CONFLICT(invoice_number) DO UPDATE SET
		sold_at        = excluded.sold_at,
		seller_code    = excluded.seller_code,
		status         = excluded.status,
		payment_terms  = excluded.payment_terms,
		gross_quantity = excluded.gross_quantity,
		gross_value    = excluded.gross_value,
		cost_value     = excluded.cost_value,
		discount_value = excluded.discount_value,
		record_ts      = excluded.record_ts
	WHERE excluded.record_ts >= sales.record_ts`

// nettingSQL reapplies every stored cancellation to its sale. Running it
// after both sale and cancellation upserts keeps netting durable across
// re-delivered sales and resolves orphans as soon as their sale arrives.
const nettingSQL = `
	UPDATE sales SET
		cancelled_quantity = CASE c.kind WHEN 'E' THEN sales.gross_quantity ELSE c.quantity END,
		cancelled_value    = CASE c.kind WHEN 'E' THEN sales.gross_value    ELSE c.value    END,
		status             = CASE c.kind WHEN 'E' THEN 'DELETED' ELSE 'RETURNED' END
	FROM cancellations c
	WHERE c.invoice_number = sales.invoice_number`

const resolveSQL = `
	UPDATE cancellations SET resolved = 1
	WHERE resolved = 0
	  AND invoice_number IN (SELECT invoice_number FROM sales)`

// UpsertSales writes a page of normalized sales and reapplies cancellation
// netting, atomically.
func (s *Store) UpsertSales(ctx context.Context, sales []types.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, sale := range sales {
			if _, err := tx.NamedExecContext(ctx, upsertSaleSQL, sale); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert sale %d", sale.InvoiceNumber)
			}
		}
		return applyNetting(ctx, tx)
	})
}

// UpsertCancellations records a page of cancellations and nets them against
// any sale already mirrored. Cancellations whose sale has not arrived stay
// unresolved for later re-resolution.
func (s *Store) UpsertCancellations(ctx context.Context, cancels []types.Cancellation) error {
	if len(cancels) == 0 {
		return nil
	}
	const sql = `
		INSERT INTO cancellations (invoice_number, kind, quantity, value, issued_at, record_ts, received_at)
		VALUES (:invoice_number, :kind, :quantity, :value, :issued_at, :record_ts, :received_at)
		ON CONFLICT(invoice_number) DO UPDATE SET
			kind      = excluded.kind,
			quantity  = excluded.quantity,
			value     = excluded.value,
			issued_at = excluded.issued_at,
			record_ts = excluded.record_ts
		WHERE excluded.record_ts >= cancellations.record_ts`

	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, cancel := range cancels {
			row := struct {
				types.Cancellation
				ReceivedAt time.Time `db:"received_at"`
			}{cancel, now}
			if _, err := tx.NamedExecContext(ctx, sql, row); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert cancellation %d", cancel.InvoiceNumber)
			}
		}
		return applyNetting(ctx, tx)
	})
}

func applyNetting(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, nettingSQL); err != nil {
		return errs.Persistence.Wrap(err, "failed to apply cancellation netting")
	}
	if _, err := tx.ExecContext(ctx, resolveSQL); err != nil {
		return errs.Persistence.Wrap(err, "failed to mark cancellations resolved")
	}
	return nil
}

// SalesByInvoice returns the stored sales for the given invoice numbers,
// the read-only view cancellation netting resolves against.
func (s *Store) SalesByInvoice(ctx context.Context, invoices []int64) (map[int64]types.Sale, error) {
	if len(invoices) == 0 {
		return map[int64]types.Sale{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM sales WHERE invoice_number IN (?)`, invoices)
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to build sales lookup")
	}

	var rows []types.Sale
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to load sales lookup")
	}
	out := make(map[int64]types.Sale, len(rows))
	for _, row := range rows {
		out[row.InvoiceNumber] = row
	}
	return out, nil
}

// UnresolvedCancellations returns orphan cancellations still within the
// retention window.
func (s *Store) UnresolvedCancellations(ctx context.Context) ([]types.Cancellation, error) {
	var rows []types.Cancellation
	err := s.db.SelectContext(ctx, &rows,
		`SELECT invoice_number, kind, quantity, value, issued_at, record_ts
		 FROM cancellations WHERE resolved = 0 ORDER BY invoice_number`)
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to load unresolved cancellations")
	}
	return rows, nil
}

// PruneOrphans drops unresolved cancellations received before the cutoff;
// their sale is considered never-arriving.
func (s *Store) PruneOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cancellations WHERE resolved = 0 AND received_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, errs.Persistence.Wrap(err, "failed to prune orphan cancellations")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) UpsertPurchases(ctx context.Context, purchases []types.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	const sql = `
		INSERT INTO purchases (invoice_number, supplier_code, issued_at, total_value, item_count, record_ts)
		VALUES (:invoice_number, :supplier_code, :issued_at, :total_value, :item_count, :record_ts)
		ON CONFLICT(invoice_number) DO UPDATE SET
			supplier_code = excluded.supplier_code,
			issued_at     = excluded.issued_at,
			total_value   = excluded.total_value,
			item_count    = excluded.item_count,
			record_ts     = excluded.record_ts
		WHERE excluded.record_ts >= purchases.record_ts`

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, purchase := range purchases {
			if _, err := tx.NamedExecContext(ctx, sql, purchase); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert purchase %d", purchase.InvoiceNumber)
			}
		}
		return nil
	})
}

func (s *Store) UpsertProducts(ctx context.Context, products []types.Product) error {
	if len(products) == 0 {
		return nil
	}
	const sql = `
		INSERT INTO products (code, name, group_name, category_name, sale_price, current_cost, on_hand, record_ts)
		VALUES (:code, :name, :group_name, :category_name, :sale_price, :current_cost, :on_hand, :record_ts)
		ON CONFLICT(code) DO UPDATE SET
			name          = excluded.name,
			group_name    = excluded.group_name,
			category_name = excluded.category_name,
			sale_price    = excluded.sale_price,
			current_cost  = excluded.current_cost,
			on_hand       = excluded.on_hand,
			record_ts     = excluded.record_ts
		WHERE excluded.record_ts >= products.record_ts`

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, product := range products {
			if _, err := tx.NamedExecContext(ctx, sql, product); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert product %d", product.Code)
			}
		}
		return nil
	})
}

// UpsertStockLevels writes movement-derived stock rows and patches the
// product mirror's on-hand quantity and cost so the dashboard queries need
// no extra join against movements.
func (s *Store) UpsertStockLevels(ctx context.Context, levels []types.StockLevel) error {
	if len(levels) == 0 {
		return nil
	}
	const levelSQL = `
		INSERT INTO stock_levels (product_code, location_code, on_hand, unit_cost, moved_at)
		VALUES (:product_code, :location_code, :on_hand, :unit_cost, :moved_at)
		ON CONFLICT(product_code, location_code) DO UPDATE SET
			on_hand   = excluded.on_hand,
			unit_cost = excluded.unit_cost,
			moved_at  = excluded.moved_at
		WHERE excluded.moved_at >= stock_levels.moved_at`
	const productPatchSQL = `
		UPDATE products SET
			on_hand      = :on_hand,
			current_cost = CASE WHEN :unit_cost > 0 THEN :unit_cost ELSE current_cost END
		WHERE code = :product_code`

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, level := range levels {
			if _, err := tx.NamedExecContext(ctx, levelSQL, level); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert stock level %d/%s", level.ProductCode, level.LocationCode)
			}
			if _, err := tx.NamedExecContext(ctx, productPatchSQL, level); err != nil {
				return errs.Persistence.Wrap(err, "failed to patch product stock %d", level.ProductCode)
			}
		}
		return nil
	})
}

// ReplaceSellers swaps the full seller reference list in one transaction;
// the snapshot endpoint has no delta concept.
func (s *Store) ReplaceSellers(ctx context.Context, sellers []types.Seller) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sellers`); err != nil {
			return errs.Persistence.Wrap(err, "failed to clear sellers")
		}
		for _, seller := range sellers {
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO sellers (code, name, record_ts) VALUES (:code, :name, :record_ts)`, seller)
			if err != nil {
				return errs.Persistence.Wrap(err, "failed to insert seller %d", seller.Code)
			}
		}
		return nil
	})
}

func (s *Store) UpsertSuppliers(ctx context.Context, suppliers []types.Supplier) error {
	if len(suppliers) == 0 {
		return nil
	}
	const sql = `
		INSERT INTO suppliers (code, name, tax_id, record_ts)
		VALUES (:code, :name, :tax_id, :record_ts)
		ON CONFLICT(code) DO UPDATE SET
			name      = excluded.name,
			tax_id    = excluded.tax_id,
			record_ts = excluded.record_ts
		WHERE excluded.record_ts >= suppliers.record_ts`

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, supplier := range suppliers {
			if _, err := tx.NamedExecContext(ctx, sql, supplier); err != nil {
				return errs.Persistence.Wrap(err, "failed to upsert supplier %d", supplier.Code)
			}
		}
		return nil
	})
}
