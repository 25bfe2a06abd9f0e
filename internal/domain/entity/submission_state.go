package entity

import "time"

// SubmissionVariant cadena de envío: principal o copia.
type SubmissionVariant string

const (
	VariantPrimary SubmissionVariant = "primary"
	VariantCopy    SubmissionVariant = "copy"
)

// Lifecycle estado visible del envío.
type Lifecycle string

const (
	LifecycleUnsubmitted Lifecycle = "unsubmitted"
	LifecycleSubmitted   Lifecycle = "submitted" // aceptado, sin QR
	LifecycleVerified    Lifecycle = "verified"  // QR presente
)

// SubmissionState estado de envío de una variante. Número y fecha de referencia
// no se guardan: se derivan de Response al leer.
type SubmissionState struct {
	Submitted   bool
	Response    string
	QRCode      []byte // PNG
	SubmittedAt *time.Time
}

// Lifecycle deriva el estado a partir de los flags.
func (s SubmissionState) Lifecycle() Lifecycle {
	switch {
	case !s.Submitted:
		return LifecycleUnsubmitted
	case len(s.QRCode) == 0:
		return LifecycleSubmitted
	default:
		return LifecycleVerified
	}
}
