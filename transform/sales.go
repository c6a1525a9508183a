package transform

import (
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/typeutils"
)

type rawSale struct {
	InvoiceNumber int64          `json:"numeroNota"`
	SoldAt        typeutils.Time `json:"dataHora"`
	ChangedAt     typeutils.Time `json:"dataAlteracao"`
	SellerCode    int64          `json:"codigoVendedor"`
	Status        string         `json:"status"`
	Quantity      float64        `json:"quantidadeProdutos"`
	GrossValue    float64        `json:"valorTotalBruto"`
	CostValue     float64        `json:"valorTotalCusto"`
	Discount      float64        `json:"valorDesconto"`
	PaymentTerms  struct {
		Name string `json:"nome"`
	} `json:"condicaoPagamento"`
}

type rawCancellation struct {
	InvoiceNumber int64          `json:"numeroNota"`
	Kind          string         `json:"tipoCancelamento"`
	IssuedAt      typeutils.Time `json:"dataEmissao"`
	ChangedAt     typeutils.Time `json:"dataAlteracao"`
	Quantity      float64        `json:"quantidadeProdutos"`
	Value         float64        `json:"valorTotalLiquido"`
}

// Sales normalizes a batch of raw sale records. Duplicated invoice numbers
// within the batch resolve to the record with the later timestamp. Records
// that cannot be decoded or carry no invoice number are skipped and
// reported, never fatal to the page.
func Sales(raws []types.RawRecord) ([]types.Sale, []error) {
	var skipped []error
	sales := make([]types.Sale, 0, len(raws))
	for _, raw := range raws {
		var rec rawSale
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.InvoiceNumber <= 0 {
			skipped = append(skipped, errs.Malformed.New("sale record without invoice number"))
			continue
		}

		status := rec.Status
		if status == "" {
			status = types.SaleStatusOK
		}
		sales = append(sales, types.Sale{
			InvoiceNumber: rec.InvoiceNumber,
			SoldAt:        rec.SoldAt.Time,
			SellerCode:    rec.SellerCode,
			Status:        status,
			PaymentTerms:  rec.PaymentTerms.Name,
			GrossQuantity: rec.Quantity,
			GrossValue:    rec.GrossValue,
			CostValue:     rec.CostValue,
			DiscountValue: rec.Discount,
			RecordTS:      recordTime(rec.ChangedAt.Time, rec.SoldAt.Time),
		})
	}

	return lastWriteWins(sales,
		func(s types.Sale) int64 { return s.InvoiceNumber },
		func(s types.Sale) time.Time { return s.RecordTS },
	), skipped
}

// Cancellations normalizes raw cancellation records. Unknown cancellation
// kinds are malformed.
func Cancellations(raws []types.RawRecord) ([]types.Cancellation, []error) {
	var skipped []error
	cancels := make([]types.Cancellation, 0, len(raws))
	for _, raw := range raws {
		var rec rawCancellation
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.InvoiceNumber <= 0 {
			skipped = append(skipped, errs.Malformed.New("cancellation without invoice number"))
			continue
		}
		kind := types.CancelKind(rec.Kind)
		if kind != types.ReturnKind && kind != types.DeletionKind {
			skipped = append(skipped, errs.Malformed.New("unknown cancellation kind %q for invoice %d", rec.Kind, rec.InvoiceNumber))
			continue
		}

		cancels = append(cancels, types.Cancellation{
			InvoiceNumber: rec.InvoiceNumber,
			Kind:          kind,
			Quantity:      rec.Quantity,
			Value:         rec.Value,
			IssuedAt:      rec.IssuedAt.Time,
			RecordTS:      recordTime(rec.ChangedAt.Time, rec.IssuedAt.Time),
		})
	}

	return lastWriteWins(cancels,
		func(c types.Cancellation) int64 { return c.InvoiceNumber },
		func(c types.Cancellation) time.Time { return c.RecordTS },
	), skipped
}

// SaleLookup is a read-only view of already-persisted sales, used to net
// cancellations that arrive in a different page or cycle than their sale.
type SaleLookup interface {
	Sale(invoiceNumber int64) (types.Sale, bool)
}

// ApplyCancellations nets each cancellation against its originating sale:
// first against sales in the current batch, then against already-persisted
// sales from the lookup. Netting replaces rather than accumulates, so
// reapplying the same cancellation any number of times yields the same
// sale. Cancellations with no matching sale anywhere are returned as
// orphans for bounded-retention retry.
func ApplyCancellations(sales []types.Sale, cancels []types.Cancellation, lookup SaleLookup) ([]types.Sale, []types.Cancellation) {
	byInvoice := make(map[int64]int, len(sales))
	for i, sale := range sales {
		byInvoice[sale.InvoiceNumber] = i
	}

	out := append([]types.Sale(nil), sales...)
	var orphans []types.Cancellation
	for _, cancel := range cancels {
		idx, inBatch := byInvoice[cancel.InvoiceNumber]
		if !inBatch {
			stored, found := lookup.Sale(cancel.InvoiceNumber)
			if !found {
				orphans = append(orphans, cancel)
				continue
			}
			out = append(out, stored)
			idx = len(out) - 1
			byInvoice[cancel.InvoiceNumber] = idx
		}
		out[idx] = net(out[idx], cancel)
	}

	return out, orphans
}

func net(sale types.Sale, cancel types.Cancellation) types.Sale {
	switch cancel.Kind {
	case types.DeletionKind:
		// a deleted invoice nets to zero regardless of the cancellation's
		// own figures
		sale.CancelledQuantity = sale.GrossQuantity
		sale.CancelledValue = sale.GrossValue
		sale.Status = types.SaleStatusDeleted
	case types.ReturnKind:
		sale.CancelledQuantity = cancel.Quantity
		sale.CancelledValue = cancel.Value
		sale.Status = types.SaleStatusReturned
	}
	sale.RecordTS = MaxTimestamp(sale.RecordTS, cancel.RecordTS)
	return sale
}

func recordTime(changed, fallback time.Time) time.Time {
	if !changed.IsZero() {
		return changed
	}
	return fallback
}
