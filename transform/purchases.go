package transform

import (
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/typeutils"
)

type rawPurchase struct {
	InvoiceNumber int64          `json:"numeroNotaFiscal"`
	SupplierCode  int64          `json:"codigoFornecedor"`
	IssuedAt      typeutils.Time `json:"dataEmissao"`
	ChangedAt     typeutils.Time `json:"dataAlteracao"`
	TotalValue    float64        `json:"valorTotal"`
	Items         []any          `json:"itens"`
}

// Purchases normalizes raw purchase notes, last-write-wins by fiscal
// invoice number.
func Purchases(raws []types.RawRecord) ([]types.Purchase, []error) {
	var skipped []error
	purchases := make([]types.Purchase, 0, len(raws))
	for _, raw := range raws {
		var rec rawPurchase
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.InvoiceNumber <= 0 {
			skipped = append(skipped, errs.Malformed.New("purchase record without fiscal invoice number"))
			continue
		}

		purchases = append(purchases, types.Purchase{
			InvoiceNumber: rec.InvoiceNumber,
			SupplierCode:  rec.SupplierCode,
			IssuedAt:      rec.IssuedAt.Time,
			TotalValue:    rec.TotalValue,
			ItemCount:     int64(len(rec.Items)),
			RecordTS:      recordTime(rec.ChangedAt.Time, rec.IssuedAt.Time),
		})
	}

	return lastWriteWins(purchases,
		func(p types.Purchase) int64 { return p.InvoiceNumber },
		func(p types.Purchase) time.Time { return p.RecordTS },
	), skipped
}
