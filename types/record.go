package types

import "time"

// RawRecord is an entity exactly as the remote gateway returned it, alive
// only for one fetch-transform-persist cycle.
type RawRecord map[string]any

type CancelKind string

const (
	// ReturnKind ("D" on the wire) is a customer return: financial values
	// net against the originating sale.
	ReturnKind CancelKind = "D"
	// DeletionKind ("E" on the wire) voids the sale entirely.
	DeletionKind CancelKind = "E"
)

// Sale is the normalized, cancellation-netted form of a sale invoice,
// keyed by the remote invoice number.
type Sale struct {
	InvoiceNumber     int64     `db:"invoice_number" json:"invoice_number"`
	SoldAt            time.Time `db:"sold_at" json:"sold_at"`
	SellerCode        int64     `db:"seller_code" json:"seller_code"`
	Status            string    `db:"status" json:"status"`
	PaymentTerms      string    `db:"payment_terms" json:"payment_terms"`
	GrossQuantity     float64   `db:"gross_quantity" json:"gross_quantity"`
	GrossValue        float64   `db:"gross_value" json:"gross_value"`
	CostValue         float64   `db:"cost_value" json:"cost_value"`
	DiscountValue     float64   `db:"discount_value" json:"discount_value"`
	CancelledQuantity float64   `db:"cancelled_quantity" json:"cancelled_quantity"`
	CancelledValue    float64   `db:"cancelled_value" json:"cancelled_value"`
	RecordTS          time.Time `db:"record_ts" json:"record_ts"`
}

const (
	SaleStatusOK       = "OK"
	SaleStatusReturned = "RETURNED"
	SaleStatusDeleted  = "DELETED"
)

// NetQuantity is the gross quantity minus all matched cancellations.
func (s Sale) NetQuantity() float64 { return s.GrossQuantity - s.CancelledQuantity }

// NetValue is the gross value minus all matched cancellations.
func (s Sale) NetValue() float64 { return s.GrossValue - s.CancelledValue }

// Cancellation nets against its originating sale. One cancellation exists
// per invoice; reapplying it is idempotent because netting replaces, never
// accumulates.
type Cancellation struct {
	InvoiceNumber int64      `db:"invoice_number" json:"invoice_number"`
	Kind          CancelKind `db:"kind" json:"kind"`
	Quantity      float64    `db:"quantity" json:"quantity"`
	Value         float64    `db:"value" json:"value"`
	IssuedAt      time.Time  `db:"issued_at" json:"issued_at"`
	RecordTS      time.Time  `db:"record_ts" json:"record_ts"`
}

type Purchase struct {
	InvoiceNumber int64     `db:"invoice_number" json:"invoice_number"`
	SupplierCode  int64     `db:"supplier_code" json:"supplier_code"`
	IssuedAt      time.Time `db:"issued_at" json:"issued_at"`
	TotalValue    float64   `db:"total_value" json:"total_value"`
	ItemCount     int64     `db:"item_count" json:"item_count"`
	RecordTS      time.Time `db:"record_ts" json:"record_ts"`
}

type Product struct {
	Code         int64     `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	GroupName    string    `db:"group_name" json:"group_name"`
	CategoryName string    `db:"category_name" json:"category_name"`
	SalePrice    float64   `db:"sale_price" json:"sale_price"`
	CurrentCost  float64   `db:"current_cost" json:"current_cost"`
	OnHand       float64   `db:"on_hand" json:"on_hand"`
	RecordTS     time.Time `db:"record_ts" json:"record_ts"`
}

// StockLevel is the current on-hand quantity and unit cost for one
// product-location key, recomputed last-write-wins from movement records.
type StockLevel struct {
	ProductCode  int64     `db:"product_code" json:"product_code"`
	LocationCode string    `db:"location_code" json:"location_code"`
	OnHand       float64   `db:"on_hand" json:"on_hand"`
	UnitCost     float64   `db:"unit_cost" json:"unit_cost"`
	MovedAt      time.Time `db:"moved_at" json:"moved_at"`
}

type Seller struct {
	Code     int64     `db:"code" json:"code"`
	Name     string    `db:"name" json:"name"`
	RecordTS time.Time `db:"record_ts" json:"record_ts"`
}

type Supplier struct {
	Code     int64     `db:"code" json:"code"`
	Name     string    `db:"name" json:"name"`
	TaxID    string    `db:"tax_id" json:"tax_id"`
	RecordTS time.Time `db:"record_ts" json:"record_ts"`
}
