package dto

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	domvms "github.com/jhoicas/vms-fiscal/internal/domain/vms"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

// ── Credenciales ──────────────────────────────────────────────────────────────

// RegisterCredentialRequest body para POST /api/credentials.
type RegisterCredentialRequest struct {
	BranchID        string     `json:"branch_id" validate:"required,max=100"`
	SystemName      string     `json:"system_name" validate:"required,max=100,excludesall=/\\"`
	ArchiveFilename string     `json:"archive_filename" validate:"required,max=200,excludesall=/\\"`
	Archive         string     `json:"archive" validate:"required"` // .pfx en base64
	ArchivePassword string     `json:"archive_password"`
	UID             string     `json:"uid,omitempty"`
	PAC             string     `json:"pac"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// CredentialResponse credencial sin material sensible.
type CredentialResponse struct {
	ID              string     `json:"id"`
	BranchID        string     `json:"branch_id"`
	SystemName      string     `json:"system_name"`
	ArchiveFilename string     `json:"archive_filename"`
	UID             string     `json:"uid,omitempty"`
	ArchivePath     string     `json:"archive_path"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	DaysToExpiry    *int       `json:"days_to_expiry,omitempty"`
	Active          bool       `json:"active"`
	Usable          bool       `json:"usable"`
	HasMaterial     bool       `json:"has_material"`
	HasPassword     bool       `json:"has_password"`
	HasPAC          bool       `json:"has_pac"`
}

// ProvisionResponse resultado de POST /api/credentials/:branch_id/provision.
type ProvisionResponse struct {
	Credential CredentialResponse `json:"credential"`
	Subject    string             `json:"subject"`
	NotAfter   time.Time          `json:"not_after"`
}

// ExpiringCredentialResponse elemento de GET /api/credentials/expiring.
type ExpiringCredentialResponse struct {
	BranchID     string    `json:"branch_id"`
	SystemName   string    `json:"system_name"`
	ExpiresAt    time.Time `json:"expires_at"`
	DaysToExpiry int       `json:"days_to_expiry"`
}

// CredentialFromEntity arma la respuesta evaluando vencimiento en now.
func CredentialFromEntity(c *entity.BranchCredential, now time.Time) CredentialResponse {
	out := CredentialResponse{
		ID:              c.ID,
		BranchID:        c.BranchID,
		SystemName:      c.SystemName,
		ArchiveFilename: c.ArchiveFilename,
		UID:             c.UID,
		ArchivePath:     c.ArchivePath,
		ExpiresAt:       c.ExpiresAt,
		Active:          c.Active,
		Usable:          c.Usable(now),
		HasMaterial:     c.HasMaterial(),
		HasPassword:     c.ArchivePassword != "",
		HasPAC:          c.PAC != "",
	}
	if c.ExpiresAt != nil {
		days := c.DaysToExpiry(now)
		out.DaysToExpiry = &days
	}
	return out
}

// ── Documentos ────────────────────────────────────────────────────────────────

// RegisterDocumentRequest body para POST /api/documents: documento ya
// finalizado por el workflow contable.
type RegisterDocumentRequest struct {
	ID              string          `json:"id,omitempty" validate:"omitempty,uuid"`
	BranchID        string          `json:"branch_id"`
	Number          string          `json:"number" validate:"required,max=100"`
	Kind            string          `json:"kind" validate:"omitempty,oneof=normal advance training proforma"`
	Transaction     string          `json:"transaction" validate:"omitempty,oneof=sale refund"`
	State           string          `json:"state" validate:"omitempty,oneof=draft posted cancel"`
	OrderRef        string          `json:"order_ref,omitempty"`
	ReversedID      string          `json:"reversed_id,omitempty" validate:"omitempty,uuid"`
	IssuedAt        time.Time       `json:"issued_at" validate:"required"`
	CashierID       string          `json:"cashier_id"`
	BuyerID         string          `json:"buyer_id"`
	BuyerCostCenter string          `json:"buyer_cost_center,omitempty"`
	ChargeCustomer  bool            `json:"charge_customer"`
	Total           decimal.Decimal `json:"total"`
	Residual        decimal.Decimal `json:"residual"`
	Rounding        decimal.Decimal `json:"rounding"`

	Lines              []LineRequest              `json:"lines" validate:"required,min=1,dive"`
	Tenders            []TenderRequest            `json:"tenders,omitempty" validate:"dive"`
	DirectPayments     []DirectPaymentRequest     `json:"direct_payments,omitempty" validate:"dive"`
	ReconciledPayments []ReconciledPaymentRequest `json:"reconciled_payments,omitempty" validate:"dive"`
}

// LineRequest línea con a lo sumo una etiqueta de impuesto.
type LineRequest struct {
	ProductName string          `json:"product_name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Discount    decimal.Decimal `json:"discount"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	ExtraCharge bool            `json:"extra_charge"`
	TaxLabels   []string        `json:"tax_labels" validate:"max=1,dive,required,max=5"`
}

type TenderRequest struct {
	Method string          `json:"method" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type DirectPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Posted bool            `json:"posted"`
}

// ReconciledPaymentRequest PaymentType acepta el nombre ("Cash") o el código ("1").
type ReconciledPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Paid        bool            `json:"paid"`
	PaymentType string          `json:"payment_type,omitempty"`
}

// ToEntity convierte el request ya validado. Aplica defaults (normal, sale,
// posted, redondeo 0.01) y las reglas que los tags no cubren.
func (r *RegisterDocumentRequest) ToEntity(now time.Time) (*entity.FiscalDocument, error) {
	if strings.TrimSpace(r.BranchID) == "" {
		return nil, errors.Wrapf(domain.ErrBranchNotMapped, "documento %s", r.Number)
	}
	if r.Total.IsNegative() {
		return nil, errors.Wrap(domain.ErrInvalidInput, "total negativo")
	}
	doc := &entity.FiscalDocument{
		ID:              r.ID,
		BranchID:        r.BranchID,
		Number:          r.Number,
		Kind:            entity.DocumentKind(lo.CoalesceOrEmpty(r.Kind, string(entity.KindNormal))),
		Transaction:     entity.Transaction(lo.CoalesceOrEmpty(r.Transaction, string(entity.TransactionSale))),
		State:           entity.DocumentState(lo.CoalesceOrEmpty(r.State, string(entity.DocumentPosted))),
		OrderRef:        r.OrderRef,
		ReversedID:      r.ReversedID,
		IssuedAt:        r.IssuedAt.UTC(),
		CashierID:       r.CashierID,
		BuyerID:         r.BuyerID,
		BuyerCostCenter: r.BuyerCostCenter,
		ChargeCustomer:  r.ChargeCustomer,
		Total:           r.Total,
		Residual:        r.Residual,
		Rounding:        r.Rounding,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if doc.Rounding.IsZero() {
		doc.Rounding = domvms.DefaultRounding
	}
	if doc.ReversedID != "" && !doc.IsRefund() {
		return nil, errors.Wrap(domain.ErrInvalidInput, "reversed_id solo aplica a notas crédito")
	}

	doc.Lines = lo.Map(r.Lines, func(l LineRequest, _ int) entity.LineItem {
		return entity.LineItem{
			ProductName: l.ProductName,
			Description: l.Description,
			Quantity:    l.Quantity,
			Discount:    l.Discount,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
			ExtraCharge: l.ExtraCharge,
			TaxLabels:   l.TaxLabels,
		}
	})
	doc.Tenders = lo.Map(r.Tenders, func(t TenderRequest, _ int) entity.Tender {
		return entity.Tender{Method: t.Method, Amount: t.Amount}
	})
	doc.DirectPayments = lo.Map(r.DirectPayments, func(p DirectPaymentRequest, _ int) entity.DirectPayment {
		return entity.DirectPayment{Amount: p.Amount, Posted: p.Posted}
	})
	for i, p := range r.ReconciledPayments {
		rp := entity.ReconciledPayment{Amount: p.Amount, Paid: p.Paid}
		if p.PaymentType != "" {
			t, ok := pkgvms.ParsePaymentType(p.PaymentType)
			if !ok {
				return nil, errors.Wrapf(domain.ErrInvalidInput,
					"reconciled_payments[%d]: tipo de pago %q desconocido", i, p.PaymentType)
			}
			rp.Type = &t
		}
		doc.ReconciledPayments = append(doc.ReconciledPayments, rp)
	}
	return doc, nil
}

// DocumentResponse documento registrado con el estado de ambas variantes.
type DocumentResponse struct {
	ID          string          `json:"id"`
	BranchID    string          `json:"branch_id"`
	Number      string          `json:"number"`
	Kind        string          `json:"kind"`
	Transaction string          `json:"transaction"`
	IssuedAt    time.Time       `json:"issued_at"`
	Total       decimal.Decimal `json:"total"`
	Primary     VariantStatus   `json:"primary"`
	Copy        VariantStatus   `json:"copy"`
}

// VariantStatus estado visible de un envío. Número y fecha de referencia
// se derivan de la respuesta guardada.
type VariantStatus struct {
	State           string     `json:"state"` // unsubmitted | submitted | verified
	ReferenceNumber string     `json:"reference_number,omitempty"`
	ReferenceTime   *time.Time `json:"reference_time,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	HasQR           bool       `json:"has_qr"`
}

// DocumentFromEntity arma el estado del documento.
func DocumentFromEntity(d *entity.FiscalDocument) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID,
		BranchID:    d.BranchID,
		Number:      d.Number,
		Kind:        string(d.Kind),
		Transaction: string(d.Transaction),
		IssuedAt:    d.IssuedAt,
		Total:       d.Total,
		Primary:     variantStatus(d.Primary, domvms.StoredReference(d)),
		Copy:        variantStatus(d.Copy, domvms.CopyReference(d)),
	}
}

func variantStatus(s entity.SubmissionState, ref domvms.Reference) VariantStatus {
	return VariantStatus{
		State:           string(s.Lifecycle()),
		ReferenceNumber: ref.Number,
		ReferenceTime:   ref.Time,
		SubmittedAt:     s.SubmittedAt,
		HasQR:           len(s.QRCode) > 0,
	}
}

// ── Envíos ────────────────────────────────────────────────────────────────────

// SubmissionResult resultado de un envío. Warning va lleno cuando el gateway
// aceptó el documento pero no se pudo extraer referencia o QR.
type SubmissionResult struct {
	DocumentID      string     `json:"document_id"`
	Variant         string     `json:"variant"`
	State           string     `json:"state"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	ReferenceTime   *time.Time `json:"reference_time,omitempty"`
	// Solo notas crédito: referencia VMS del documento revertido.
	OriginNumber string     `json:"origin_number,omitempty"`
	OriginTime   *time.Time `json:"origin_time,omitempty"`
	Warning      string     `json:"warning,omitempty"`
}

// SubmitBatchRequest body para POST /api/documents/submit-batch.
type SubmitBatchRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,max=200,unique,dive,uuid"`
}

// BatchItemResult resultado por documento; Error y Code vacíos si salió bien.
type BatchItemResult struct {
	DocumentID string            `json:"document_id"`
	Result     *SubmissionResult `json:"result,omitempty"`
	Code       string            `json:"code,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SubmitBatchResponse resultados en el mismo orden del request.
type SubmitBatchResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
