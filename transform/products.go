package transform

import (
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/typeutils"
)

type rawProduct struct {
	Code         int64          `json:"codigo"`
	Name         string         `json:"nome"`
	GroupName    string         `json:"nomeGrupo"`
	CategoryName string         `json:"nomeCategoria"`
	SalePrice    float64        `json:"precoVenda"`
	Cost         float64        `json:"precoCusto"`
	OnHand       float64        `json:"quantidadeEstoque"`
	ChangedAt    typeutils.Time `json:"dataAlteracao"`
}

type rawStockMovement struct {
	ProductCode  int64          `json:"codigoProduto"`
	LocationCode string         `json:"codigoFilial"`
	OnHand       float64        `json:"quantidadeEstoque"`
	UnitCost     float64        `json:"custoUnitario"`
	MovedAt      typeutils.Time `json:"dataAlteracao"`
}

// DefaultLocation is assumed when a movement carries no branch code; the
// gateway token is scoped to a single branch.
const DefaultLocation = "1"

// Products normalizes raw product records, last-write-wins by product code.
func Products(raws []types.RawRecord) ([]types.Product, []error) {
	var skipped []error
	products := make([]types.Product, 0, len(raws))
	for _, raw := range raws {
		var rec rawProduct
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.Code <= 0 {
			skipped = append(skipped, errs.Malformed.New("product record without code"))
			continue
		}

		products = append(products, types.Product{
			Code:         rec.Code,
			Name:         rec.Name,
			GroupName:    rec.GroupName,
			CategoryName: rec.CategoryName,
			SalePrice:    rec.SalePrice,
			CurrentCost:  rec.Cost,
			OnHand:       rec.OnHand,
			RecordTS:     rec.ChangedAt.Time,
		})
	}

	return lastWriteWins(products,
		func(p types.Product) int64 { return p.Code },
		func(p types.Product) time.Time { return p.RecordTS },
	), skipped
}

// StockLevels recomputes current on-hand quantity and unit cost from
// movement records, last-write-wins by (product, location) key.
func StockLevels(raws []types.RawRecord) ([]types.StockLevel, []error) {
	var skipped []error
	levels := make([]types.StockLevel, 0, len(raws))
	for _, raw := range raws {
		var rec rawStockMovement
		if err := decode(raw, &rec); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if rec.ProductCode <= 0 {
			skipped = append(skipped, errs.Malformed.New("stock movement without product code"))
			continue
		}
		location := rec.LocationCode
		if location == "" {
			location = DefaultLocation
		}

		levels = append(levels, types.StockLevel{
			ProductCode:  rec.ProductCode,
			LocationCode: location,
			OnHand:       rec.OnHand,
			UnitCost:     rec.UnitCost,
			MovedAt:      rec.MovedAt.Time,
		})
	}

	type key struct {
		product  int64
		location string
	}
	return lastWriteWins(levels,
		func(l types.StockLevel) key { return key{l.ProductCode, l.LocationCode} },
		func(l types.StockLevel) time.Time { return l.MovedAt },
	), skipped
}
