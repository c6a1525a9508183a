package transform

import (
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/typeutils"
)

type rawSeller struct {
	Code int64  `json:"codigo"`
	Name string `json:"nome"`
}

type rawSupplier struct {
	Code      int64          `json:"codigo"`
	Name      string         `json:"razaoSocial"`
	ShortName string         `json:"nome"`
	TaxID     string         `json:"cnpj"`
	ChangedAt typeutils.Time `json:"dataAlteracao"`
}

// Sellers normalizes the seller reference list. Sellers carry no change
// timestamp; the snapshot timestamp is supplied by the caller.
func Sellers(raws []types.RawRecord, snapshotAt time.Time) ([]types.Seller, []error) {
	var skipped []error
	sellers := make([]types.Seller, 0, len(raws))
	for _, raw := range raws {
		var rec rawSeller
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.Code <= 0 {
			skipped = append(skipped, errs.Malformed.New("seller record without code"))
			continue
		}
		sellers = append(sellers, types.Seller{
			Code:     rec.Code,
			Name:     rec.Name,
			RecordTS: snapshotAt,
		})
	}

	return lastWriteWins(sellers,
		func(s types.Seller) int64 { return s.Code },
		func(s types.Seller) time.Time { return s.RecordTS },
	), skipped
}

// Suppliers normalizes raw supplier records, last-write-wins by code.
func Suppliers(raws []types.RawRecord, snapshotAt time.Time) ([]types.Supplier, []error) {
	var skipped []error
	suppliers := make([]types.Supplier, 0, len(raws))
	for _, raw := range raws {
		var rec rawSupplier
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.Code <= 0 {
			skipped = append(skipped, errs.Malformed.New("supplier record without code"))
			continue
		}
		name := rec.Name
		if name == "" {
			name = rec.ShortName
		}
		ts := rec.ChangedAt.Time
		if ts.IsZero() {
			ts = snapshotAt
		}
		suppliers = append(suppliers, types.Supplier{
			Code:     rec.Code,
			Name:     name,
			TaxID:    rec.TaxID,
			RecordTS: ts,
		})
	}

	return lastWriteWins(suppliers,
		func(s types.Supplier) int64 { return s.Code },
		func(s types.Supplier) time.Time { return s.RecordTS },
	), skipped
}
