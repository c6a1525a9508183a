package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariaslabs/sgfsync/types"
)

type fakeLookup map[int64]types.Sale

func (f fakeLookup) Sale(invoiceNumber int64) (types.Sale, bool) {
	s, ok := f[invoiceNumber]
	return s, ok
}

func rawSaleRecord(invoice int64, changedAt string, quantity, value float64) types.RawRecord {
	return types.RawRecord{
		"numeroNota":         invoice,
		"dataHora":           "2026-08-01 10:30:00",
		"dataAlteracao":      changedAt,
		"codigoVendedor":     7,
		"quantidadeProdutos": quantity,
		"valorTotalBruto":    value,
		"valorTotalCusto":    value / 2,
		"valorDesconto":      1.5,
		"condicaoPagamento":  map[string]any{"nome": "A VISTA"},
	}
}

func TestSalesNormalization(t *testing.T) {
	sales, skipped := Sales([]types.RawRecord{
		rawSaleRecord(100, "2026-08-01 11:00:00", 10, 200),
	})
	require.Empty(t, skipped)
	require.Len(t, sales, 1)

	sale := sales[0]
	assert.Equal(t, int64(100), sale.InvoiceNumber)
	assert.Equal(t, int64(7), sale.SellerCode)
	assert.Equal(t, types.SaleStatusOK, sale.Status)
	assert.Equal(t, "A VISTA", sale.PaymentTerms)
	assert.Equal(t, 10.0, sale.GrossQuantity)
	assert.Equal(t, 200.0, sale.GrossValue)
	assert.Equal(t, time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC), sale.RecordTS)
}

func TestSalesSkipsMalformed(t *testing.T) {
	sales, skipped := Sales([]types.RawRecord{
		{"numeroNota": 0, "dataHora": "2026-08-01 10:30:00"},
		{"numeroNota": "not-a-number"},
		rawSaleRecord(101, "2026-08-01 11:00:00", 1, 10),
	})
	require.Len(t, sales, 1)
	assert.Equal(t, int64(101), sales[0].InvoiceNumber)
	assert.Len(t, skipped, 2)
}

func TestSalesLastWriteWinsWithinBatch(t *testing.T) {
	sales, skipped := Sales([]types.RawRecord{
		rawSaleRecord(100, "2026-08-01 11:00:00", 10, 200),
		rawSaleRecord(100, "2026-08-01 12:00:00", 8, 160),
		rawSaleRecord(100, "2026-08-01 09:00:00", 99, 999),
	})
	require.Empty(t, skipped)
	require.Len(t, sales, 1)
	assert.Equal(t, 8.0, sales[0].GrossQuantity)
	assert.Equal(t, 160.0, sales[0].GrossValue)
}

func TestCancellationsRejectUnknownKind(t *testing.T) {
	cancels, skipped := Cancellations([]types.RawRecord{
		{"numeroNota": 100, "tipoCancelamento": "D", "quantidadeProdutos": 3, "valorTotalLiquido": 60, "dataEmissao": "2026-08-02 09:00:00"},
		{"numeroNota": 101, "tipoCancelamento": "X", "dataEmissao": "2026-08-02 09:00:00"},
	})
	require.Len(t, cancels, 1)
	assert.Equal(t, types.ReturnKind, cancels[0].Kind)
	assert.Len(t, skipped, 1)
}

func TestApplyCancellationsReturnNetsSale(t *testing.T) {
	sales := []types.Sale{{
		InvoiceNumber: 100,
		Status:        types.SaleStatusOK,
		GrossQuantity: 10,
		GrossValue:    200,
		RecordTS:      time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
	}}
	cancels := []types.Cancellation{{
		InvoiceNumber: 100,
		Kind:          types.ReturnKind,
		Quantity:      3,
		Value:         60,
		RecordTS:      time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}}

	netted, orphans := ApplyCancellations(sales, cancels, fakeLookup{})
	require.Empty(t, orphans)
	require.Len(t, netted, 1)

	sale := netted[0]
	assert.Equal(t, types.SaleStatusReturned, sale.Status)
	assert.Equal(t, 7.0, sale.NetQuantity())
	assert.Equal(t, 140.0, sale.NetValue())
	assert.Equal(t, cancels[0].RecordTS, sale.RecordTS)
}

func TestApplyCancellationsDeletionVoidsSale(t *testing.T) {
	sales := []types.Sale{{InvoiceNumber: 100, GrossQuantity: 10, GrossValue: 200, Status: types.SaleStatusOK}}
	cancels := []types.Cancellation{{InvoiceNumber: 100, Kind: types.DeletionKind, Quantity: 1, Value: 5}}

	netted, orphans := ApplyCancellations(sales, cancels, fakeLookup{})
	require.Empty(t, orphans)
	sale := netted[0]
	assert.Equal(t, types.SaleStatusDeleted, sale.Status)
	assert.Zero(t, sale.NetQuantity())
	assert.Zero(t, sale.NetValue())
}

func TestApplyCancellationsUsesLookupForEarlierPages(t *testing.T) {
	stored := fakeLookup{
		100: {InvoiceNumber: 100, GrossQuantity: 10, GrossValue: 200, Status: types.SaleStatusOK},
	}
	cancels := []types.Cancellation{{InvoiceNumber: 100, Kind: types.ReturnKind, Quantity: 3, Value: 60}}

	netted, orphans := ApplyCancellations(nil, cancels, stored)
	require.Empty(t, orphans)
	require.Len(t, netted, 1)
	assert.Equal(t, 7.0, netted[0].NetQuantity())
}

func TestApplyCancellationsIsIdempotent(t *testing.T) {
	sales := []types.Sale{{InvoiceNumber: 100, GrossQuantity: 10, GrossValue: 200, Status: types.SaleStatusOK}}
	cancels := []types.Cancellation{{InvoiceNumber: 100, Kind: types.ReturnKind, Quantity: 3, Value: 60}}

	once, _ := ApplyCancellations(sales, cancels, fakeLookup{})
	twice, _ := ApplyCancellations(once, cancels, fakeLookup{})
	assert.Equal(t, once, twice)
	assert.Equal(t, 7.0, twice[0].NetQuantity())
}

func TestApplyCancellationsOrphans(t *testing.T) {
	cancels := []types.Cancellation{{InvoiceNumber: 999, Kind: types.ReturnKind, Quantity: 1, Value: 10}}

	netted, orphans := ApplyCancellations(nil, cancels, fakeLookup{})
	assert.Empty(t, netted)
	require.Len(t, orphans, 1)
	assert.Equal(t, int64(999), orphans[0].InvoiceNumber)
}
