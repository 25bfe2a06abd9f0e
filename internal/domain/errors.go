package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errores genéricos de dominio.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
)

// ── Taxonomía fiscal VMS ──────────────────────────────────────────────────────
// Cada error concreto se marca (errors.Mark) con una de estas categorías para que
// los llamadores decidan con errors.Is sin conocer la variante exacta.

var (
	// ErrConfiguration credencial ausente, inactiva o vencida; sucursal sin mapear.
	ErrConfiguration = errors.New("configuración fiscal inválida")
	// ErrPaymentNotCollected documento de venta sin pagos conciliados etiquetados.
	ErrPaymentNotCollected = errors.New("pago no cobrado")
	// ErrPaymentIncomplete el documento no supera el control de pago total.
	ErrPaymentIncomplete = errors.New("el documento no está pagado en su totalidad")
	// ErrArchiveDecode el archivo PKCS#12 almacenado no es base64 válido.
	ErrArchiveDecode = errors.New("no se pudo decodificar el archivo de credencial")
	// ErrArchiveAuth contraseña incorrecta o estructura PKCS#12 corrupta.
	ErrArchiveAuth = errors.New("no se pudo abrir el archivo de credencial")
	// ErrGatewaySubmission el gateway rechazó el envío o falló el transporte.
	ErrGatewaySubmission = errors.New("envío al gateway VMS fallido")
	// ErrResponseParse la respuesta del gateway no es JSON válido.
	ErrResponseParse = errors.New("respuesta del gateway inválida")
	// ErrQRDecode la respuesta no trae un QR de verificación decodificable.
	ErrQRDecode = errors.New("no se pudo decodificar el QR de verificación")

	ErrAlreadySubmitted = errors.New("el documento ya fue enviado al VMS")
	ErrNotSubmitted     = errors.New("el documento original aún no fue enviado al VMS")
)

// Variantes de ErrConfiguration: cada una es errors.Is de sí misma y de
// ErrConfiguration, nunca de otra variante.
var (
	ErrCredentialMissing         = errors.Wrap(ErrConfiguration, "la sucursal no tiene credencial VMS")
	ErrCredentialInactive        = errors.Wrap(ErrConfiguration, "la credencial VMS de la sucursal no está activa")
	ErrCredentialExpired         = errors.Wrap(ErrConfiguration, "la credencial VMS de la sucursal está vencida")
	ErrCredentialPasswordMissing = errors.Wrap(ErrConfiguration, "la credencial VMS no tiene contraseña")
	ErrCredentialPACMissing      = errors.Wrap(ErrConfiguration, "la credencial VMS no tiene PAC")
	ErrCredentialMaterialMissing = errors.Wrap(ErrConfiguration, "la credencial VMS no tiene certificado ni llave")
	ErrBranchNotMapped           = errors.Wrap(ErrConfiguration, "el documento no tiene sucursal asignada")
)

// GatewayError conserva el status y el cuerpo de la respuesta (o el error de
// transporte) tal cual, para diagnóstico del operador.
type GatewayError struct {
	StatusCode int    // 0 si falló el transporte
	Body       string // cuerpo literal de la respuesta
	Err        error  // error de transporte, si lo hubo
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway VMS: %v", e.Err)
	}
	return fmt.Sprintf("gateway VMS: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError construye el error marcado como ErrGatewaySubmission.
func NewGatewayError(status int, body string, cause error) error {
	return errors.Mark(&GatewayError{StatusCode: status, Body: body, Err: cause}, ErrGatewaySubmission)
}

// IsVerificationWarning indica fallos posteriores a un envío exitoso: el documento
// quedó enviado pero faltan la referencia o el QR.
func IsVerificationWarning(err error) bool {
	return errors.Is(err, ErrResponseParse) || errors.Is(err, ErrQRDecode)
}

// Códigos estables para clientes HTTP y resultados por lote.
const (
	CodeConfiguration    = "CONFIGURATION"
	CodePaymentNotPaid   = "PAYMENT_NOT_COLLECTED"
	CodePaymentPartial   = "PAYMENT_INCOMPLETE"
	CodeArchive          = "ARCHIVE_INVALID"
	CodeGateway          = "GATEWAY"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodeNotSubmitted     = "NOT_SUBMITTED"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicate        = "DUPLICATE"
	CodeValidation       = "VALIDATION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL"
)

// ErrorCode clasifica err según la taxonomía. El orden importa: una variante
// de configuración también puede venir envuelta en un error de validación.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrPaymentNotCollected):
		return CodePaymentNotPaid
	case errors.Is(err, ErrPaymentIncomplete):
		return CodePaymentPartial
	case errors.Is(err, ErrArchiveDecode), errors.Is(err, ErrArchiveAuth):
		return CodeArchive
	case errors.Is(err, ErrGatewaySubmission):
		return CodeGateway
	case errors.Is(err, ErrAlreadySubmitted):
		return CodeAlreadySubmitted
	case errors.Is(err, ErrNotSubmitted):
		return CodeNotSubmitted
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	case errors.Is(err, ErrInvalidInput):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
