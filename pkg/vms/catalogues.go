// Package vms contiene los catálogos del protocolo V-SDC del sistema de monitoreo
// de IVA (VMS): tipos de factura, tipos de transacción y tipos de pago.
package vms

import (
	"strconv"
	"strings"
)

// =============================================================================
// Endpoint y cabeceras del gateway V-SDC
// =============================================================================

const (
	// DefaultGatewayURL endpoint sandbox de facturas del V-SDC.
	DefaultGatewayURL = "https://vsdc.sandbox.vms.frcs.org.fj/api/v3/invoices"

	HeaderPAC         = "PAC"
	ContentTypeJSON   = "application/json"
	IssueTimeLayout   = "2006-01-02T15:04:05.000Z" // dateAndTimeOfIssue (UTC, milisegundos)
	ReferenceDTLayout = "2006-01-02 15:04:05"      // referentDocumentDT
)

// =============================================================================
// invoiceType / transactionType
// =============================================================================

const (
	InvoiceTypeNormal   = "Normal"
	InvoiceTypeProforma = "Proforma"
	InvoiceTypeCopy     = "Copy"
	InvoiceTypeTraining = "Training"
	InvoiceTypeAdvance  = "Advance"
)

const (
	TransactionSale   = "Sale"
	TransactionRefund = "Refund"
)

// =============================================================================
// paymentType (enumeración fija del gateway)
// =============================================================================

// PaymentType código numérico de medio de pago aceptado por el V-SDC.
type PaymentType int

const (
	PaymentOther        PaymentType = 0
	PaymentCash         PaymentType = 1
	PaymentCard         PaymentType = 2
	PaymentCheck        PaymentType = 3
	PaymentWireTransfer PaymentType = 4
	PaymentVoucher      PaymentType = 5
	PaymentMobileMoney  PaymentType = 6
)

var paymentTypeNames = map[PaymentType]string{
	PaymentOther:        "Other",
	PaymentCash:         "Cash",
	PaymentCard:         "Card",
	PaymentCheck:        "Check",
	PaymentWireTransfer: "WireTransfer",
	PaymentVoucher:      "Voucher",
	PaymentMobileMoney:  "MobileMoney",
}

// Valid indica si el código pertenece a la enumeración.
func (p PaymentType) Valid() bool {
	_, ok := paymentTypeNames[p]
	return ok
}

func (p PaymentType) String() string {
	if name, ok := paymentTypeNames[p]; ok {
		return name
	}
	return "PaymentType(" + strconv.Itoa(int(p)) + ")"
}

// ParsePaymentType acepta el nombre ("Cash") o el código ("1").
func ParsePaymentType(s string) (PaymentType, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := PaymentType(n)
		return p, p.Valid()
	}
	for code, name := range paymentTypeNames {
		if strings.EqualFold(name, s) {
			return code, true
		}
	}
	return PaymentOther, false
}

// TenderPaymentType mapea el nombre del método de pago del POS. Solo "Cash" y
// "Card" (exactos, tras recortar espacios) tienen código propio; el resto es Other.
func TenderPaymentType(method string) PaymentType {
	switch strings.TrimSpace(method) {
	case "Cash":
		return PaymentCash
	case "Card":
		return PaymentCard
	default:
		return PaymentOther
	}
}
