package vms

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GatewayResponse campos que se leen de la respuesta 200/201 del V-SDC.
type GatewayResponse struct {
	InvoiceNumber      string `json:"invoiceNumber"`
	SDCDateTime        string `json:"sdcDateTime"`
	VerificationQRCode string `json:"verificationQRCode"`
}

// Reference número y fecha asignados por el gateway a un envío.
type Reference struct {
	Number string
	Time   *time.Time // UTC
}

// DT fecha en el formato de referentDocumentDT; vacío si no hay fecha.
func (r Reference) DT() string {
	if r.Time == nil {
		return ""
	}
	return r.Time.UTC().Format(pkgvms.ReferenceDTLayout)
}

// ParseResponse decodifica la respuesta cruda del gateway.
func ParseResponse(raw string) (*GatewayResponse, error) {
	var resp GatewayResponse
	if err := json.UnmarshalFromString(raw, &resp); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsear respuesta VMS"), domain.ErrResponseParse)
	}
	return &resp, nil
}

// ParseReference deriva número y fecha de referencia de la respuesta cruda.
// invoiceNumber ausente no es error; sdcDateTime ilegible sí.
func ParseReference(raw string) (Reference, error) {
	resp, err := ParseResponse(raw)
	if err != nil {
		return Reference{}, err
	}
	ref := Reference{Number: resp.InvoiceNumber}
	if resp.SDCDateTime != "" {
		t, err := ParseSDCTime(resp.SDCDateTime)
		if err != nil {
			return Reference{}, err
		}
		ref.Time = &t
	}
	return ref, nil
}

var sdcLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseSDCTime interpreta un timestamp ISO-8601 y lo normaliza a UTC.
// Sin zona horaria se asume UTC.
func ParseSDCTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sdcLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Mark(errors.Newf("sdcDateTime inválido: %q", s), domain.ErrResponseParse)
}

// StoredReference referencia del envío principal de un documento. Si no fue
// enviado o la respuesta es ilegible la referencia queda vacía.
func StoredReference(doc *entity.FiscalDocument) Reference {
	return stateReference(doc.Primary)
}

// CopyReference referencia del envío de la copia.
func CopyReference(doc *entity.FiscalDocument) Reference {
	return stateReference(doc.Copy)
}

func stateReference(s entity.SubmissionState) Reference {
	if !s.Submitted || s.Response == "" {
		return Reference{}
	}
	ref, err := ParseReference(s.Response)
	if err != nil {
		return Reference{}
	}
	return ref
}
