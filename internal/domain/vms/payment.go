package vms

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

// DefaultRounding unidad de redondeo cuando el documento no trae la de su moneda.
var DefaultRounding = decimal.NewFromFloat(0.01)

// Amount monto que se serializa como número JSON sin comillas.
type Amount decimal.Decimal

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

// Decimal devuelve el valor como decimal.Decimal.
func (a Amount) Decimal() decimal.Decimal { return decimal.Decimal(a) }

// PaymentEntry entrada de la lista "payment" del payload.
type PaymentEntry struct {
	Amount      Amount             `json:"amount"`
	PaymentType pkgvms.PaymentType `json:"paymentType"`
}

// ── Control de pago total ─────────────────────────────────────────────────────

// Collected suma lo cobrado: pagos POS + pagos directos contabilizados +
// pagos conciliados en estado pagado.
func Collected(doc *entity.FiscalDocument) decimal.Decimal {
	total := decimal.Zero
	for _, t := range doc.Tenders {
		total = total.Add(t.Amount)
	}
	for _, p := range doc.DirectPayments {
		if p.Posted {
			total = total.Add(p.Amount)
		}
	}
	for _, p := range doc.ReconciledPayments {
		if p.Paid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// IsFullyPaid el residual es cero dentro de la unidad de redondeo, o la
// diferencia entre total y cobrado no supera esa unidad.
func IsFullyPaid(doc *entity.FiscalDocument) bool {
	rounding := doc.Rounding
	if !rounding.IsPositive() {
		rounding = DefaultRounding
	}
	if doc.Residual.Div(rounding).Round(0).IsZero() {
		return true
	}
	return doc.Total.Sub(Collected(doc)).LessThanOrEqual(rounding)
}

// CheckFullPayment aplica el control de pago total. Clientes a crédito y
// proformas no pasan por el control.
func CheckFullPayment(doc *entity.FiscalDocument) error {
	if doc.ChargeCustomer || doc.IsProforma() {
		return nil
	}
	if !IsFullyPaid(doc) {
		return errors.WithDetailf(domain.ErrPaymentIncomplete,
			"documento %s: total %s, cobrado %s, residual %s",
			doc.Number, doc.Total, Collected(doc), doc.Residual)
	}
	return nil
}

// ── Lista de pagos ────────────────────────────────────────────────────────────

// BuildPayments construye la lista "payment" en orden de prioridad:
//  1. pagos del POS, uno por medio de pago;
//  2. cliente a crédito o nota crédito: pagos conciliados etiquetados, o una
//     sola entrada Other por el total si no hay ninguno;
//  3. venta ordinaria: todo pago conciliado pagado debe estar etiquetado.
//
// La proforma reporta siempre una sola entrada Cash por el total.
func BuildPayments(doc *entity.FiscalDocument) ([]PaymentEntry, error) {
	if doc.IsProforma() {
		return []PaymentEntry{{Amount: Amount(doc.Total), PaymentType: pkgvms.PaymentCash}}, nil
	}

	if doc.FromPOS() {
		return lo.Map(doc.Tenders, func(t entity.Tender, _ int) PaymentEntry {
			return PaymentEntry{Amount: Amount(t.Amount), PaymentType: pkgvms.TenderPaymentType(t.Method)}
		}), nil
	}

	paid := lo.Filter(doc.ReconciledPayments, func(p entity.ReconciledPayment, _ int) bool { return p.Paid })

	if doc.ChargeCustomer || doc.IsRefund() {
		tagged := lo.FilterMap(paid, func(p entity.ReconciledPayment, _ int) (PaymentEntry, bool) {
			if p.Type == nil {
				return PaymentEntry{}, false
			}
			return PaymentEntry{Amount: Amount(p.Amount), PaymentType: *p.Type}, true
		})
		if len(tagged) == 0 {
			return []PaymentEntry{{Amount: Amount(doc.Total), PaymentType: pkgvms.PaymentOther}}, nil
		}
		return tagged, nil
	}

	if len(doc.ReconciledPayments) == 0 {
		return nil, errors.WithDetailf(domain.ErrPaymentNotCollected, "documento %s sin pagos conciliados", doc.Number)
	}
	entries := make([]PaymentEntry, 0, len(paid))
	for i, p := range paid {
		if p.Type == nil {
			return nil, errors.WithDetailf(domain.ErrPaymentNotCollected,
				"documento %s: el pago conciliado #%d no tiene tipo de pago VMS", doc.Number, i+1)
		}
		entries = append(entries, PaymentEntry{Amount: Amount(p.Amount), PaymentType: *p.Type})
	}
	if len(entries) == 0 {
		return nil, errors.WithDetailf(domain.ErrPaymentNotCollected, "documento %s sin pagos cobrados", doc.Number)
	}
	return entries, nil
}
