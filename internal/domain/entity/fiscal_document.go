package entity

import (
	"time"

	"github.com/shopspring/decimal"

	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

// DocumentKind tipo de documento según el flujo que lo originó.
type DocumentKind string

const (
	KindNormal   DocumentKind = "normal"
	KindAdvance  DocumentKind = "advance"  // cuota/anticipo de una orden de venta
	KindTraining DocumentKind = "training" // modo entrenamiento del POS
	KindProforma DocumentKind = "proforma" // cotización de orden de venta
)

// Transaction sentido del documento.
type Transaction string

const (
	TransactionSale   Transaction = "sale"
	TransactionRefund Transaction = "refund"
)

// DocumentState estado contable del documento (lo gobierna el workflow externo).
type DocumentState string

const (
	DocumentDraft     DocumentState = "draft"
	DocumentPosted    DocumentState = "posted"
	DocumentCancelled DocumentState = "cancel"
)

// FiscalDocument documento finalizado que se reporta al VMS: factura, nota
// crédito, cuota de anticipo o proforma. La copia no es un documento aparte,
// es el estado Copy del mismo registro.
type FiscalDocument struct {
	ID              string
	BranchID        string
	Number          string // invoiceNumber
	Kind            DocumentKind
	Transaction     Transaction
	State           DocumentState
	OrderRef        string // orden de venta padre (cadena de anticipos)
	ReversedID      string // documento que revierte una nota crédito
	IssuedAt        time.Time
	Sequence        int64 // orden de creación, desempate de la cadena
	CashierID       string
	BuyerID         string
	BuyerCostCenter string
	ChargeCustomer  bool // cliente a crédito: no aplica el control de pago total
	Total           decimal.Decimal
	Residual        decimal.Decimal
	Rounding        decimal.Decimal // unidad de redondeo de la moneda

	Lines              []LineItem
	Tenders            []Tender
	DirectPayments     []DirectPayment
	ReconciledPayments []ReconciledPayment

	Primary SubmissionState
	Copy    SubmissionState

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *FiscalDocument) IsRefund() bool    { return d.Transaction == TransactionRefund }
func (d *FiscalDocument) IsAdvance() bool   { return d.Kind == KindAdvance }
func (d *FiscalDocument) IsProforma() bool  { return d.Kind == KindProforma }
func (d *FiscalDocument) IsCancelled() bool { return d.State == DocumentCancelled }

// FromPOS indica si el documento tiene pagos del punto de venta.
func (d *FiscalDocument) FromPOS() bool { return len(d.Tenders) > 0 }

// Submission devuelve el estado de envío de la variante pedida.
func (d *FiscalDocument) Submission(variant SubmissionVariant) *SubmissionState {
	if variant == VariantCopy {
		return &d.Copy
	}
	return &d.Primary
}

// LineItem línea del documento con exactamente una etiqueta de impuesto.
type LineItem struct {
	ID          string
	ProductName string
	Description string
	Quantity    decimal.Decimal
	Discount    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	ExtraCharge bool // línea de cargo (propina, envío): no se reporta
	TaxLabels   []string
}

// Tender pago registrado por el POS.
type Tender struct {
	Method string
	Amount decimal.Decimal
}

// DirectPayment pago aplicado directamente al documento.
type DirectPayment struct {
	Amount decimal.Decimal
	Posted bool
}

// ReconciledPayment pago de back-office conciliado con el documento.
// Type es la etiqueta VMS del pago; nil si el pago no fue etiquetado.
type ReconciledPayment struct {
	Amount decimal.Decimal
	Paid   bool
	Type   *pkgvms.PaymentType
}
