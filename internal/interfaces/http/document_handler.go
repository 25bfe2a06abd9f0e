package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/application/fiscal"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

type documentUseCase interface {
	Register(ctx context.Context, req dto.RegisterDocumentRequest) (*dto.DocumentResponse, error)
	Status(ctx context.Context, documentID string) (*dto.DocumentResponse, error)
	QRCode(ctx context.Context, documentID string, variant entity.SubmissionVariant) ([]byte, error)
}

type submissionUseCase interface {
	Submit(ctx context.Context, documentID string) (*dto.SubmissionResult, error)
	SubmitCopy(ctx context.Context, documentID string) (*dto.SubmissionResult, error)
}

type batchUseCase interface {
	SubmitBatch(ctx context.Context, req dto.SubmitBatchRequest) (*dto.SubmitBatchResponse, error)
}

var (
	_ documentUseCase   = (*fiscal.DocumentService)(nil)
	_ submissionUseCase = (*fiscal.SubmissionService)(nil)
	_ batchUseCase      = (*fiscal.BatchSubmitter)(nil)
)

// DocumentHandler registro, envío y consulta de documentos fiscales.
type DocumentHandler struct {
	docs   documentUseCase
	submit submissionUseCase
	batch  batchUseCase
	log    *logger.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(docs documentUseCase, submit submissionUseCase, batch batchUseCase, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, submit: submit, batch: batch, log: log}
}

// Register registra un documento finalizado.
// POST /api/documents
func (h *DocumentHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if !canAccessBranch(c, in.BranchID) {
		return forbiddenBranch(c)
	}
	out, err := h.docs.Register(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Status estado de envío (original y copia).
// GET /api/documents/:id/status
func (h *DocumentHandler) Status(c *fiber.Ctx) error {
	out, err := h.authorize(c)
	if err != nil || out == nil {
		return err
	}
	return c.JSON(out)
}

// Submit envía el documento al gateway VMS.
// POST /api/documents/:id/submit
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	return h.doSubmit(c, h.submit.Submit)
}

// SubmitCopy envía la copia del documento.
// POST /api/documents/:id/copy
func (h *DocumentHandler) SubmitCopy(c *fiber.Ctx) error {
	return h.doSubmit(c, h.submit.SubmitCopy)
}

func (h *DocumentHandler) doSubmit(c *fiber.Ctx, send func(context.Context, string) (*dto.SubmissionResult, error)) error {
	doc, err := h.authorize(c)
	if err != nil || doc == nil {
		return err
	}
	out, err := send(c.UserContext(), doc.ID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// SubmitBatch envía varios documentos en paralelo.
// POST /api/documents/submit-batch
func (h *DocumentHandler) SubmitBatch(c *fiber.Ctx) error {
	var in dto.SubmitBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.batch.SubmitBatch(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// QRCode PNG de verificación.
// GET /api/documents/:id/qr?variant=primary|copy
func (h *DocumentHandler) QRCode(c *fiber.Ctx) error {
	variant := entity.SubmissionVariant(c.Query("variant", string(entity.VariantPrimary)))
	if variant != entity.VariantPrimary && variant != entity.VariantCopy {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "variant debe ser primary o copy"})
	}
	doc, err := h.authorize(c)
	if err != nil || doc == nil {
		return err
	}
	png, err := h.docs.QRCode(c.UserContext(), doc.ID, variant)
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// authorize carga el documento del path y verifica la sucursal del token.
// Si devuelve (nil, nil) la respuesta ya fue escrita.
func (h *DocumentHandler) authorize(c *fiber.Ctx) (*dto.DocumentResponse, error) {
	doc, err := h.docs.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, writeError(c, h.log, err)
	}
	if !canAccessBranch(c, doc.BranchID) {
		return nil, forbiddenBranch(c)
	}
	return doc, nil
}
