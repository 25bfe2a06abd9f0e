package vms_test

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptype(p pkgvms.PaymentType) *pkgvms.PaymentType { return &p }

var baseIssue = time.Date(2025, 3, 4, 10, 20, 30, 123456789, time.UTC)

// saleDoc factura normal, pagada en efectivo desde el POS.
func saleDoc() *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID:          "doc-1",
		BranchID:    "branch-1",
		Number:      "INV/2025/0001",
		Kind:        entity.KindNormal,
		Transaction: entity.TransactionSale,
		State:       entity.DocumentPosted,
		IssuedAt:    baseIssue,
		Sequence:    1,
		CashierID:   "CJ-01",
		BuyerID:     "42",
		Total:       dec("115.00"),
		Residual:    decimal.Zero,
		Rounding:    dec("0.01"),
		Lines: []entity.LineItem{
			{ProductName: "Café", Quantity: dec("2"), Discount: decimal.Zero, UnitPrice: dec("50.00"), Total: dec("115.00"), TaxLabels: []string{"A"}},
			{ProductName: "Propina", Quantity: dec("1"), UnitPrice: dec("5"), Total: dec("5"), ExtraCharge: true, TaxLabels: []string{"E"}},
		},
		Tenders: []entity.Tender{{Method: "Cash", Amount: dec("115.00")}},
	}
}

// advanceDoc cuota de anticipo de la orden SO-1, pagada con un pago conciliado.
func advanceDoc(id string, seq int64, issued time.Time) *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID:          id,
		BranchID:    "branch-1",
		Number:      "ADV/" + id,
		Kind:        entity.KindAdvance,
		Transaction: entity.TransactionSale,
		State:       entity.DocumentPosted,
		OrderRef:    "SO-1",
		IssuedAt:    issued,
		Sequence:    seq,
		CashierID:   "CJ-01",
		BuyerID:     "7",
		Total:       dec("100"),
		Rounding:    dec("0.01"),
		Lines: []entity.LineItem{
			{ProductName: "Down payment", Quantity: dec("1"), UnitPrice: dec("100"), Total: dec("100"), TaxLabels: []string{"A"}},
		},
		ReconciledPayments: []entity.ReconciledPayment{{Amount: dec("100"), Paid: true, Type: ptype(pkgvms.PaymentWireTransfer)}},
	}
}

// markSubmitted simula un envío aceptado con número y fecha del gateway.
func markSubmitted(doc *entity.FiscalDocument, number, sdc string) {
	doc.Primary = entity.SubmissionState{
		Submitted: true,
		Response:  fmt.Sprintf(`{"invoiceNumber":%q,"sdcDateTime":%q}`, number, sdc),
	}
}
