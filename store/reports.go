package store

import (
	"context"
	"time"

	"github.com/fariaslabs/sgfsync/errs"
)

// Read-side queries for the dashboard layer. Everything here runs against
// committed mirror state only.

// DailySales is one day of netted sales activity.
type DailySales struct {
	Day           string  `db:"day" json:"day"`
	SaleCount     int64   `db:"sale_count" json:"sale_count"`
	NetQuantity   float64 `db:"net_quantity" json:"net_quantity"`
	NetValue      float64 `db:"net_value" json:"net_value"`
	CostValue     float64 `db:"cost_value" json:"cost_value"`
	DiscountValue float64 `db:"discount_value" json:"discount_value"`
	ReturnedValue float64 `db:"returned_value" json:"returned_value"`
}

// SalesByDay aggregates netted sales per calendar day over [from, to).
// Deleted sales net to zero and drop out of value sums but still count
// toward returned value.
func (s *Store) SalesByDay(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	var rows []DailySales
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date(sold_at) AS day,
			COUNT(*) AS sale_count,
			SUM(gross_quantity - cancelled_quantity) AS net_quantity,
			SUM(gross_value - cancelled_value) AS net_value,
			SUM(cost_value) AS cost_value,
			SUM(discount_value) AS discount_value,
			SUM(cancelled_value) AS returned_value
		FROM sales
		WHERE sold_at >= ? AND sold_at < ?
		GROUP BY date(sold_at)
		ORDER BY day`, from.UTC(), to.UTC())
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to aggregate sales by day")
	}
	return rows, nil
}

// ProductStock is the current stock position of one product.
type ProductStock struct {
	Code         int64   `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	GroupName    string  `db:"group_name" json:"group_name"`
	CategoryName string  `db:"category_name" json:"category_name"`
	SalePrice    float64 `db:"sale_price" json:"sale_price"`
	CurrentCost  float64 `db:"current_cost" json:"current_cost"`
	OnHand       float64 `db:"on_hand" json:"on_hand"`
	StockValue   float64 `db:"stock_value" json:"stock_value"`
}

// StockPositions returns the product catalog with current on-hand and cost
// valuation, largest stock value first.
func (s *Store) StockPositions(ctx context.Context, limit int) ([]ProductStock, error) {
	var rows []ProductStock
	err := s.db.SelectContext(ctx, &rows, `
		SELECT code, name, group_name, category_name, sale_price, current_cost, on_hand,
			on_hand * current_cost AS stock_value
		FROM products
		ORDER BY stock_value DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to load stock positions")
	}
	return rows, nil
}

// PurchaseEntry is one supplier note with the supplier name joined in.
type PurchaseEntry struct {
	InvoiceNumber int64     `db:"invoice_number" json:"invoice_number"`
	SupplierCode  int64     `db:"supplier_code" json:"supplier_code"`
	SupplierName  string    `db:"supplier_name" json:"supplier_name"`
	IssuedAt      time.Time `db:"issued_at" json:"issued_at"`
	TotalValue    float64   `db:"total_value" json:"total_value"`
	ItemCount     int64     `db:"item_count" json:"item_count"`
}

// PurchaseEntries lists purchase notes issued in [from, to), newest first.
func (s *Store) PurchaseEntries(ctx context.Context, from, to time.Time) ([]PurchaseEntry, error) {
	var rows []PurchaseEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.invoice_number, p.supplier_code,
			COALESCE(f.name, '') AS supplier_name,
			p.issued_at, p.total_value, p.item_count
		FROM purchases p
		LEFT JOIN suppliers f ON f.code = p.supplier_code
		WHERE p.issued_at >= ? AND p.issued_at < ?
		ORDER BY p.issued_at DESC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, errs.Persistence.Wrap(err, "failed to list purchase entries")
	}
	return rows, nil
}

// KPISummary condenses a period into the headline dashboard numbers.
type KPISummary struct {
	SaleCount     int64   `db:"sale_count" json:"sale_count"`
	NetRevenue    float64 `db:"net_revenue" json:"net_revenue"`
	GrossMargin   float64 `db:"gross_margin" json:"gross_margin"`
	ReturnedValue float64 `db:"returned_value" json:"returned_value"`
	PurchaseValue float64 `db:"purchase_value" json:"purchase_value"`
	StockValue    float64 `db:"stock_value" json:"stock_value"`
}

// KPIs computes the headline numbers for [from, to). Margin is net revenue
// minus recorded cost of sold goods.
func (s *Store) KPIs(ctx context.Context, from, to time.Time) (KPISummary, error) {
	lo, hi := from.UTC(), to.UTC()
	var out KPISummary
	err := s.db.GetContext(ctx, &out, `
		SELECT
			(SELECT COUNT(*) FROM sales WHERE sold_at >= ? AND sold_at < ?) AS sale_count,
			COALESCE((SELECT SUM(gross_value - cancelled_value) FROM sales WHERE sold_at >= ? AND sold_at < ?), 0) AS net_revenue,
			COALESCE((SELECT SUM(gross_value - cancelled_value - cost_value) FROM sales WHERE sold_at >= ? AND sold_at < ? AND status != 'DELETED'), 0) AS gross_margin,
			COALESCE((SELECT SUM(cancelled_value) FROM sales WHERE sold_at >= ? AND sold_at < ?), 0) AS returned_value,
			COALESCE((SELECT SUM(total_value) FROM purchases WHERE issued_at >= ? AND issued_at < ?), 0) AS purchase_value,
			COALESCE((SELECT SUM(on_hand * current_cost) FROM products), 0) AS stock_value`,
		lo, hi, lo, hi, lo, hi, lo, hi, lo, hi)
	if err != nil {
		return KPISummary{}, errs.Persistence.Wrap(err, "failed to compute kpis")
	}
	return out, nil
}
