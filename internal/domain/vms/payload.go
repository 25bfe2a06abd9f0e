package vms

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

// Payload cuerpo JSON canónico que se envía al V-SDC. El orden de los campos
// es fijo y forma parte del contrato.
type Payload struct {
	DateAndTimeOfIssue     string         `json:"dateAndTimeOfIssue"`
	Cashier                string         `json:"cashier"`
	BuyerID                string         `json:"buyerId"`
	BuyerCostCenterID      *string        `json:"buyerCostCenterId"`
	InvoiceType            string         `json:"invoiceType"`
	TransactionType        string         `json:"transactionType"`
	Payment                []PaymentEntry `json:"payment"`
	InvoiceNumber          string         `json:"invoiceNumber"`
	ReferentDocumentNumber string         `json:"referentDocumentNumber"`
	ReferentDocumentDT     string         `json:"referentDocumentDT"`
	Items                  []Item         `json:"items"`
}

// Item entrada de la lista "items".
type Item struct {
	Name        string   `json:"name"`
	Quantity    Amount   `json:"quantity"`
	Discount    Amount   `json:"discount"`
	UnitPrice   Amount   `json:"unitPrice"`
	TotalAmount Amount   `json:"totalAmount"`
	Labels      []string `json:"labels"`
}

// PayloadInput datos que determinan el payload. Reversed es obligatorio para
// notas crédito con ReversedID; Chain son las cuotas de la orden del documento.
type PayloadInput struct {
	Document *entity.FiscalDocument
	Reversed *entity.FiscalDocument
	Chain    ReferenceChain
	Variant  entity.SubmissionVariant
}

// Marshal serializa el payload; mismo payload, mismos bytes.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// BuildPayload construye el payload canónico de un documento. Es una función
// pura de (documento, líneas, pagos, cadena).
func BuildPayload(in PayloadInput) (*Payload, error) {
	doc := in.Document
	if doc == nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, "documento nil")
	}
	if doc.IssuedAt.IsZero() {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "documento %s sin fecha de emisión", doc.ID)
	}
	if doc.IsRefund() && doc.ReversedID != "" && (in.Reversed == nil || in.Reversed.ID != doc.ReversedID) {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "documento %s: falta el documento revertido %s", doc.ID, doc.ReversedID)
	}
	isCopy := in.Variant == entity.VariantCopy

	if !isCopy {
		if err := CheckFullPayment(doc); err != nil {
			return nil, err
		}
	}
	payments, err := BuildPayments(doc)
	if err != nil {
		return nil, err
	}

	invoiceType, transactionType := ResolveTypes(doc, in.Variant)
	ref, err := resolveReference(in)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		DateAndTimeOfIssue:     doc.IssuedAt.UTC().Format(pkgvms.IssueTimeLayout),
		Cashier:                doc.CashierID,
		BuyerID:                doc.BuyerID,
		InvoiceType:            invoiceType,
		TransactionType:        transactionType,
		Payment:                payments,
		InvoiceNumber:          doc.Number,
		ReferentDocumentNumber: ref.number,
		ReferentDocumentDT:     ref.dt,
		Items:                  buildItems(in),
	}
	if doc.BuyerCostCenter != "" {
		cc := doc.BuyerCostCenter
		p.BuyerCostCenterID = &cc
	}
	return p, nil
}

// ResolveTypes invoiceType y transactionType del documento.
func ResolveTypes(doc *entity.FiscalDocument, variant entity.SubmissionVariant) (invoiceType, transactionType string) {
	transactionType = pkgvms.TransactionSale
	if doc.IsRefund() {
		transactionType = pkgvms.TransactionRefund
	}
	if variant == entity.VariantCopy {
		return pkgvms.InvoiceTypeCopy, transactionType
	}
	switch doc.Kind {
	case entity.KindAdvance:
		return pkgvms.InvoiceTypeAdvance, transactionType
	case entity.KindTraining:
		return pkgvms.InvoiceTypeTraining, transactionType
	case entity.KindProforma:
		return pkgvms.InvoiceTypeProforma, transactionType
	default:
		return pkgvms.InvoiceTypeNormal, transactionType
	}
}

type referentDocument struct {
	number string
	dt     string
}

func resolveReference(in PayloadInput) (referentDocument, error) {
	doc := in.Document
	switch {
	case in.Variant == entity.VariantCopy:
		ref := StoredReference(doc)
		return referentDocument{number: ref.Number, dt: ref.DT()}, nil

	case doc.IsRefund():
		if in.Reversed == nil {
			if doc.IsProforma() {
				return referentDocument{}, errors.Wrapf(domain.ErrInvalidInput,
					"la nota crédito proforma %s requiere la proforma de origen", doc.ID)
			}
			return referentDocument{}, nil
		}
		ref := StoredReference(in.Reversed)
		if doc.IsProforma() && (ref.Number == "" || ref.Time == nil) {
			return referentDocument{}, errors.Wrapf(domain.ErrInvalidInput,
				"la proforma %s no tiene número y fecha de referencia VMS", in.Reversed.ID)
		}
		return referentDocument{number: ref.Number, dt: ref.DT()}, nil

	case doc.IsAdvance():
		prev := in.Chain.Previous(doc.ID)
		if prev == nil {
			return referentDocument{}, nil
		}
		ref := StoredReference(prev)
		if ref.Time == nil {
			issued := prev.IssuedAt
			ref.Time = &issued
		}
		return referentDocument{number: ref.Number, dt: ref.DT()}, nil
	}
	return referentDocument{}, nil
}

// installmentLabel etiqueta de cuota a usar en los ítems; vacía si no aplica.
// En notas crédito el ordinal sale del anticipo revertido, no de la nota.
func installmentLabel(in PayloadInput) string {
	doc := in.Document
	if !doc.IsAdvance() {
		return ""
	}
	ordinalOf := doc.ID
	if doc.IsRefund() {
		if in.Reversed == nil {
			return InstallmentLabel(1)
		}
		ordinalOf = in.Reversed.ID
	}
	return InstallmentLabel(in.Chain.Ordinal(ordinalOf))
}

func buildItems(in PayloadInput) []Item {
	label := installmentLabel(in)
	isCopy := in.Variant == entity.VariantCopy

	reportable := lo.Filter(in.Document.Lines, func(l entity.LineItem, _ int) bool { return !l.ExtraCharge })
	items := make([]Item, 0, len(reportable))
	for _, l := range reportable {
		var name string
		switch {
		case isCopy:
			name = firstNonEmpty(label, l.ProductName, l.Description, "Item")
		case label != "":
			name = label
		default:
			name = firstNonEmpty(l.ProductName, l.Description)
		}
		labels := l.TaxLabels
		if labels == nil {
			labels = []string{}
		}
		items = append(items, Item{
			Name:        norm.NFC.String(name),
			Quantity:    Amount(l.Quantity),
			Discount:    Amount(l.Discount),
			UnitPrice:   Amount(l.UnitPrice),
			TotalAmount: Amount(l.Total),
			Labels:      labels,
		})
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
