package http

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

var statusByCode = map[string]int{
	domain.CodeConfiguration:    fiber.StatusUnprocessableEntity,
	domain.CodePaymentNotPaid:   fiber.StatusUnprocessableEntity,
	domain.CodePaymentPartial:   fiber.StatusUnprocessableEntity,
	domain.CodeArchive:          fiber.StatusUnprocessableEntity,
	domain.CodeGateway:          fiber.StatusBadGateway,
	domain.CodeAlreadySubmitted: fiber.StatusConflict,
	domain.CodeNotSubmitted:     fiber.StatusConflict,
	domain.CodeDuplicate:        fiber.StatusConflict,
	domain.CodeNotFound:         fiber.StatusNotFound,
	domain.CodeValidation:       fiber.StatusBadRequest,
	domain.CodeUnauthorized:     fiber.StatusUnauthorized,
	domain.CodeForbidden:        fiber.StatusForbidden,
}

// writeError traduce un error de la capa de aplicación a status + ErrorResponse.
// Los rechazos del gateway llevan el status y el cuerpo literal en details.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	code := domain.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	resp := dto.ErrorResponse{Code: code, Message: err.Error()}
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		resp.Details = map[string]any{"gateway_status": gwErr.StatusCode, "gateway_body": gwErr.Body}
	}
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		resp.Message = "error interno"
	}
	return c.Status(status).JSON(resp)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
