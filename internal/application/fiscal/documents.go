package fiscal

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// DocumentService registro y consulta de documentos fiscales.
type DocumentService struct {
	tx   TxRunner
	docs repository.DocumentRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewDocumentService construye el servicio.
func NewDocumentService(tx TxRunner, docs repository.DocumentRepository, log *logger.Logger) *DocumentService {
	return &DocumentService{tx: tx, docs: docs, log: log.Component("documents"), now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (s *DocumentService) WithClock(now func() time.Time) *DocumentService {
	s.now = now
	return s
}

// Register persiste un documento finalizado con sus líneas y pagos.
func (s *DocumentService) Register(ctx context.Context, req dto.RegisterDocumentRequest) (*dto.DocumentResponse, error) {
	if err := dto.ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err := req.ToEntity(s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, func(docs repository.DocumentRepository, _ repository.CredentialRepository) error {
		if doc.ReversedID != "" {
			reversed, err := docs.GetByID(ctx, doc.ReversedID)
			if err != nil {
				return err
			}
			if reversed == nil {
				return errors.Wrapf(domain.ErrInvalidInput, "documento revertido %s no existe", doc.ReversedID)
			}
			if reversed.IsRefund() {
				return errors.Wrap(domain.ErrInvalidInput, "una nota crédito no puede revertir otra nota crédito")
			}
			if reversed.BranchID != doc.BranchID {
				return errors.Wrap(domain.ErrInvalidInput, "el documento revertido es de otra sucursal")
			}
			if reversed.IsProforma() != doc.IsProforma() {
				return errors.Wrap(domain.ErrInvalidInput, "una proforma solo se revierte con una nota crédito proforma")
			}
		}
		return docs.Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("branch_id", doc.BranchID).Str("number", doc.Number).Msg("documento registrado")
	out := dto.DocumentFromEntity(doc)
	return &out, nil
}

// Status estado del documento y de sus dos variantes de envío.
func (s *DocumentService) Status(ctx context.Context, documentID string) (*dto.DocumentResponse, error) {
	doc, err := s.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := dto.DocumentFromEntity(doc)
	return &out, nil
}

// QRCode PNG de verificación de la variante; ErrNotFound si aún no hay QR.
func (s *DocumentService) QRCode(ctx context.Context, documentID string, variant entity.SubmissionVariant) ([]byte, error) {
	doc, err := s.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	qr := doc.Submission(variant).QRCode
	if len(qr) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "QR %s del documento %s", variant, documentID)
	}
	return qr, nil
}

func (s *DocumentService) get(ctx context.Context, documentID string) (*entity.FiscalDocument, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.Wrapf(domain.ErrNotFound, "documento %s", documentID)
	}
	return doc, nil
}
