package fiscal

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	domvms "github.com/jhoicas/vms-fiscal/internal/domain/vms"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
	"github.com/jhoicas/vms-fiscal/pkg/keylock"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// SubmissionService envía documentos al gateway VMS:
//
//	lock → credencial → payload → POST mTLS → marcar enviado → referencia + QR
//
// Todo el ciclo corre bajo el lock del documento (mutex en proceso + FOR UPDATE),
// así dos envíos simultáneos del mismo documento producen una sola llamada de red.
// Si el QR no se puede guardar, el envío sigue confirmado y el resultado lleva un aviso.
// No hay reintentos: un fallo del gateway deja el documento sin enviar.
type SubmissionService struct {
	tx        TxRunner
	gateway   Gateway
	processor ResponseProcessor
	locks     *keylock.KeyLock
	log       *logger.Logger
	now       func() time.Time
}

// NewSubmissionService construye el servicio.
func NewSubmissionService(
	tx TxRunner,
	gateway Gateway,
	processor ResponseProcessor,
	locks *keylock.KeyLock,
	log *logger.Logger,
) *SubmissionService {
	return &SubmissionService{
		tx:        tx,
		gateway:   gateway,
		processor: processor,
		locks:     locks,
		log:       log.Component("submission"),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit envía el documento como original.
func (s *SubmissionService) Submit(ctx context.Context, documentID string) (*dto.SubmissionResult, error) {
	return s.submit(ctx, documentID, entity.VariantPrimary)
}

// SubmitCopy envía la copia de un documento cuyo original ya fue enviado.
func (s *SubmissionService) SubmitCopy(ctx context.Context, documentID string) (*dto.SubmissionResult, error) {
	return s.submit(ctx, documentID, entity.VariantCopy)
}

func (s *SubmissionService) submit(ctx context.Context, documentID string, variant entity.SubmissionVariant) (*dto.SubmissionResult, error) {
	unlock, err := s.locks.Lock(ctx, "document:"+documentID)
	if err != nil {
		return nil, errors.Wrap(err, "esperando lock del documento")
	}
	defer unlock()

	log := s.log.With().Str("document_id", documentID).Str("variant", string(variant)).Logger()

	var (
		doc      *entity.FiscalDocument
		reversed *entity.FiscalDocument
		raw      string
	)
	err = s.tx.RunDocumentLocked(ctx, documentID, func(docs repository.DocumentRepository, creds repository.CredentialRepository) error {
		var err error
		doc, err = docs.GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return errors.Wrapf(domain.ErrNotFound, "documento %s", documentID)
		}
		state := doc.Submission(variant)
		if state.Submitted {
			return errors.Wrapf(domain.ErrAlreadySubmitted, "documento %s (%s)", doc.Number, variant)
		}
		if variant == entity.VariantCopy && !doc.Primary.Submitted {
			return errors.Wrapf(domain.ErrNotSubmitted, "documento %s", doc.Number)
		}
		if doc.BranchID == "" {
			return errors.Wrapf(domain.ErrBranchNotMapped, "documento %s", doc.Number)
		}

		cred, err := creds.GetByBranch(ctx, doc.BranchID)
		if err != nil {
			return err
		}
		if err := infravms.ValidateCredential(cred, s.now()); err != nil {
			log.Warn().Str("step", "credential").Str("branch_id", doc.BranchID).Err(err).Msg("credencial no utilizable")
			return errors.Wrapf(err, "sucursal %s", doc.BranchID)
		}

		in, err := s.payloadInput(ctx, docs, doc, variant)
		if err != nil {
			return err
		}
		reversed = in.Reversed
		payload, err := domvms.BuildPayload(in)
		if err != nil {
			log.Warn().Str("step", "payload").Err(err).Msg("documento no enviable")
			return err
		}

		raw, err = s.gateway.Submit(ctx, payload, cred)
		if err != nil {
			ev := log.Error().Str("step", "gateway").Str("branch_id", doc.BranchID).Err(err)
			var gwErr *domain.GatewayError
			if errors.As(err, &gwErr) {
				ev = ev.Int("status", gwErr.StatusCode).Str("body", gwErr.Body)
			}
			ev.Msg("envío rechazado")
			return err
		}

		submittedAt := s.now().UTC()
		if err := docs.MarkSubmitted(ctx, doc.ID, variant, raw, submittedAt); err != nil {
			// el gateway ya aceptó: queda registro de la respuesta para conciliar a mano
			log.Error().Str("step", "persist").Str("response", raw).Err(err).Msg("aceptado por el gateway pero no se pudo marcar enviado")
			return err
		}
		state.Submitted = true
		state.Response = raw
		state.SubmittedAt = &submittedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	// El QR se guarda en su propia transacción: la marca de enviado ya está
	// confirmada y un fallo aquí no puede revertirla.
	var warnings []string
	ver, verr := s.processor.Process(raw)
	if verr != nil {
		log.Warn().Str("step", "response").Err(verr).Msg("enviado sin verificación completa")
		warnings = append(warnings, verr.Error())
	}
	if ver != nil && len(ver.QRCode) > 0 {
		err := s.tx.Run(ctx, func(docs repository.DocumentRepository, _ repository.CredentialRepository) error {
			return docs.AttachQR(ctx, doc.ID, variant, ver.QRCode)
		})
		if err != nil {
			log.Error().Str("step", "qr").Err(err).Msg("enviado pero no se pudo guardar el QR")
			warnings = append(warnings, "no se pudo guardar el QR: "+err.Error())
		} else {
			doc.Submission(variant).QRCode = ver.QRCode
		}
	}

	result := newSubmissionResult(doc, variant, ver, reversed)
	result.Warning = strings.Join(warnings, "; ")
	log.Info().Str("step", "done").Str("reference", result.ReferenceNumber).Str("state", result.State).Msg("documento enviado")
	return result, nil
}

// payloadInput carga el documento revertido y la cadena de cuotas de la orden.
func (s *SubmissionService) payloadInput(ctx context.Context, docs repository.DocumentRepository, doc *entity.FiscalDocument, variant entity.SubmissionVariant) (domvms.PayloadInput, error) {
	in := domvms.PayloadInput{Document: doc, Variant: variant}

	if doc.IsRefund() && doc.ReversedID != "" {
		reversed, err := docs.GetByID(ctx, doc.ReversedID)
		if err != nil {
			return in, err
		}
		if reversed == nil {
			return in, errors.Wrapf(domain.ErrInvalidInput, "documento revertido %s no existe", doc.ReversedID)
		}
		in.Reversed = reversed
	}

	orderRef := doc.OrderRef
	if orderRef == "" && in.Reversed != nil {
		orderRef = in.Reversed.OrderRef
	}
	if orderRef != "" && (doc.IsAdvance() || (in.Reversed != nil && in.Reversed.IsAdvance())) {
		orderDocs, err := docs.ListByOrder(ctx, orderRef)
		if err != nil {
			return in, err
		}
		in.Chain = domvms.NewReferenceChain(orderDocs)
	}
	return in, nil
}

func newSubmissionResult(doc *entity.FiscalDocument, variant entity.SubmissionVariant, ver *infravms.Verification, reversed *entity.FiscalDocument) *dto.SubmissionResult {
	state := doc.Submission(variant)
	out := &dto.SubmissionResult{
		DocumentID: doc.ID,
		Variant:    string(variant),
		State:      string(state.Lifecycle()),
	}
	if ver != nil {
		out.ReferenceNumber = ver.Reference.Number
		out.ReferenceTime = ver.Reference.Time
	}
	if doc.IsRefund() && reversed != nil {
		origin := domvms.StoredReference(reversed)
		out.OriginNumber = origin.Number
		out.OriginTime = origin.Time
	}
	return out
}
