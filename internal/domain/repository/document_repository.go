package repository

import (
	"context"
	"time"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para documentos fiscales
// y sus dos estados de envío (principal y copia).
type DocumentRepository interface {
	// Create persiste cabecera, líneas y pagos en una sola llamada.
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	// GetByID devuelve el documento completo o nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// ListByOrder devuelve los documentos de una orden de venta (cadena de anticipos).
	ListByOrder(ctx context.Context, orderRef string) ([]*entity.FiscalDocument, error)

	// MarkSubmitted registra la respuesta aceptada. Solo escribe si la variante
	// no estaba enviada; si ya lo estaba devuelve domain.ErrAlreadySubmitted.
	MarkSubmitted(ctx context.Context, id string, variant entity.SubmissionVariant, response string, at time.Time) error
	// AttachQR guarda el PNG de verificación de la variante.
	AttachQR(ctx context.Context, id string, variant entity.SubmissionVariant, png []byte) error
}
