package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// Origen de cada fila de fiscal_document_payments.
const (
	paymentSourceTender     = "tender"
	paymentSourceDirect     = "direct"
	paymentSourceReconciled = "reconciled"
)

// DocumentRepo implementa DocumentRepository sobre PostgreSQL (pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, branch_id, number, kind, transaction_type, state, order_ref, reversed_id,
	issued_at, seq, cashier_id, buyer_id, buyer_cost_center, charge_customer,
	total, residual, rounding,
	submitted, response, qr_code, submitted_at,
	copy_submitted, copy_response, copy_qr_code, copy_submitted_at,
	created_at, updated_at`

// Create persiste cabecera, líneas y pagos. Llamar dentro de TxRunner.Run
// para que sea atómico.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO fiscal_documents
			(id, branch_id, number, kind, transaction_type, state, order_ref, reversed_id,
			 issued_at, cashier_id, buyer_id, buyer_cost_center, charge_customer,
			 total, residual, rounding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING seq`
	err := r.q.QueryRow(ctx, q,
		doc.ID, doc.BranchID, doc.Number, string(doc.Kind), string(doc.Transaction), string(doc.State),
		nullIfEmpty(doc.OrderRef), nullIfEmpty(doc.ReversedID),
		doc.IssuedAt, doc.CashierID, doc.BuyerID, nullIfEmpty(doc.BuyerCostCenter), doc.ChargeCustomer,
		doc.Total, doc.Residual, doc.Rounding, doc.CreatedAt, doc.UpdatedAt,
	).Scan(&doc.Sequence)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "documento %s duplicado", doc.Number), domain.ErrDuplicate)
		}
		return errors.Wrap(err, "insert fiscal_document")
	}

	for i := range doc.Lines {
		if err := r.insertLine(ctx, doc.ID, i, &doc.Lines[i]); err != nil {
			return err
		}
	}
	pos := 0
	for _, t := range doc.Tenders {
		if err := r.insertPayment(ctx, doc.ID, pos, paymentSourceTender, t.Method, t.Amount, true, nil); err != nil {
			return err
		}
		pos++
	}
	for _, p := range doc.DirectPayments {
		if err := r.insertPayment(ctx, doc.ID, pos, paymentSourceDirect, "", p.Amount, p.Posted, nil); err != nil {
			return err
		}
		pos++
	}
	for _, p := range doc.ReconciledPayments {
		var code *int16
		if p.Type != nil {
			c := int16(*p.Type)
			code = &c
		}
		if err := r.insertPayment(ctx, doc.ID, pos, paymentSourceReconciled, "", p.Amount, p.Paid, code); err != nil {
			return err
		}
		pos++
	}
	return nil
}

func (r *DocumentRepo) insertLine(ctx context.Context, docID string, pos int, line *entity.LineItem) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	labels := line.TaxLabels
	if labels == nil {
		labels = []string{}
	}
	const q = `
		INSERT INTO fiscal_document_lines
			(id, document_id, position, product_name, description, quantity, discount, unit_price, total, extra_charge, tax_labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, q,
		line.ID, docID, pos, line.ProductName, line.Description,
		line.Quantity, line.Discount, line.UnitPrice, line.Total, line.ExtraCharge, labels,
	)
	if err != nil {
		return errors.Wrap(err, "insert fiscal_document_line")
	}
	return nil
}

func (r *DocumentRepo) insertPayment(ctx context.Context, docID string, pos int, source, method string, amount decimal.Decimal, settled bool, code *int16) error {
	const q = `
		INSERT INTO fiscal_document_payments (id, document_id, position, source, method, amount, settled, payment_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, q, uuid.New().String(), docID, pos, source, method, amount, settled, code)
	if err != nil {
		return errors.Wrap(err, "insert fiscal_document_payment")
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1`
	doc, err := scanDocument(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get fiscal_document")
	}
	if err := r.loadChildren(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListByOrder devuelve los documentos de la orden en orden de creación.
func (r *DocumentRepo) ListByOrder(ctx context.Context, orderRef string) ([]*entity.FiscalDocument, error) {
	if orderRef == "" {
		return nil, nil
	}
	q := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE order_ref = $1 ORDER BY seq`
	rows, err := r.q.Query(ctx, q, orderRef)
	if err != nil {
		return nil, errors.Wrap(err, "list fiscal_documents by order")
	}
	var docs []*entity.FiscalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan fiscal_document")
		}
		docs = append(docs, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterar fiscal_documents")
	}
	for _, doc := range docs {
		if err := r.loadChildren(ctx, doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// MarkSubmitted escribe una sola vez por variante: el WHERE sobre el flag hace
// de guarda frente a envíos concurrentes que no pasaron por el lock.
func (r *DocumentRepo) MarkSubmitted(ctx context.Context, id string, variant entity.SubmissionVariant, response string, at time.Time) error {
	q := `
		UPDATE fiscal_documents
		SET submitted = TRUE, response = $2, submitted_at = $3, updated_at = $3
		WHERE id = $1 AND NOT submitted`
	if variant == entity.VariantCopy {
		q = `
		UPDATE fiscal_documents
		SET copy_submitted = TRUE, copy_response = $2, copy_submitted_at = $3, updated_at = $3
		WHERE id = $1 AND NOT copy_submitted`
	}
	tag, err := r.q.Exec(ctx, q, id, response, at)
	if err != nil {
		return errors.Wrap(err, "update fiscal_document submission")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrAlreadySubmitted, "documento %s (%s)", id, variant)
	}
	return nil
}

func (r *DocumentRepo) AttachQR(ctx context.Context, id string, variant entity.SubmissionVariant, png []byte) error {
	q := `UPDATE fiscal_documents SET qr_code = $2, updated_at = now() WHERE id = $1`
	if variant == entity.VariantCopy {
		q = `UPDATE fiscal_documents SET copy_qr_code = $2, updated_at = now() WHERE id = $1`
	}
	tag, err := r.q.Exec(ctx, q, id, png)
	if err != nil {
		return errors.Wrap(err, "update fiscal_document qr")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "documento %s", id)
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (r *DocumentRepo) loadChildren(ctx context.Context, doc *entity.FiscalDocument) error {
	const linesQ = `
		SELECT id, product_name, description, quantity, discount, unit_price, total, extra_charge, tax_labels
		FROM fiscal_document_lines WHERE document_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, linesQ, doc.ID)
	if err != nil {
		return errors.Wrap(err, "get fiscal_document_lines")
	}
	doc.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.LineItem, error) {
		var l entity.LineItem
		err := row.Scan(&l.ID, &l.ProductName, &l.Description, &l.Quantity, &l.Discount,
			&l.UnitPrice, &l.Total, &l.ExtraCharge, &l.TaxLabels)
		return l, err
	})
	if err != nil {
		return errors.Wrap(err, "scan fiscal_document_line")
	}

	const paymentsQ = `
		SELECT source, method, amount, settled, payment_type
		FROM fiscal_document_payments WHERE document_id = $1 ORDER BY position`
	rows, err = r.q.Query(ctx, paymentsQ, doc.ID)
	if err != nil {
		return errors.Wrap(err, "get fiscal_document_payments")
	}
	defer rows.Close()
	doc.Tenders, doc.DirectPayments, doc.ReconciledPayments = nil, nil, nil
	for rows.Next() {
		var (
			source, method string
			amount         decimal.Decimal
			settled        bool
			code           *int16
		)
		if err := rows.Scan(&source, &method, &amount, &settled, &code); err != nil {
			return errors.Wrap(err, "scan fiscal_document_payment")
		}
		switch source {
		case paymentSourceTender:
			doc.Tenders = append(doc.Tenders, entity.Tender{Method: method, Amount: amount})
		case paymentSourceDirect:
			doc.DirectPayments = append(doc.DirectPayments, entity.DirectPayment{Amount: amount, Posted: settled})
		case paymentSourceReconciled:
			p := entity.ReconciledPayment{Amount: amount, Paid: settled}
			if code != nil {
				t := pkgvms.PaymentType(*code)
				p.Type = &t
			}
			doc.ReconciledPayments = append(doc.ReconciledPayments, p)
		}
	}
	return rows.Err()
}

func scanDocument(row pgxScanner) (*entity.FiscalDocument, error) {
	var (
		d                            entity.FiscalDocument
		kind, tx, state              string
		orderRef, reversedID, center *string
		response, copyResponse       *string
	)
	err := row.Scan(
		&d.ID, &d.BranchID, &d.Number, &kind, &tx, &state, &orderRef, &reversedID,
		&d.IssuedAt, &d.Sequence, &d.CashierID, &d.BuyerID, &center, &d.ChargeCustomer,
		&d.Total, &d.Residual, &d.Rounding,
		&d.Primary.Submitted, &response, &d.Primary.QRCode, &d.Primary.SubmittedAt,
		&d.Copy.Submitted, &copyResponse, &d.Copy.QRCode, &d.Copy.SubmittedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = entity.DocumentKind(kind)
	d.Transaction = entity.Transaction(tx)
	d.State = entity.DocumentState(state)
	d.OrderRef = derefStr(orderRef)
	d.ReversedID = derefStr(reversedID)
	d.BuyerCostCenter = derefStr(center)
	d.Primary.Response = derefStr(response)
	d.Copy.Response = derefStr(copyResponse)
	return &d, nil
}
