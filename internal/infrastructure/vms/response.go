package vms

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	domvms "github.com/jhoicas/vms-fiscal/internal/domain/vms"
)

// Verification datos derivados de una respuesta aceptada.
type Verification struct {
	Reference domvms.Reference
	QRCode    []byte // PNG
}

// ResponseProcessor extrae referencia y QR de verificación de la respuesta del V-SDC.
type ResponseProcessor struct{}

// NewResponseProcessor construye el procesador.
func NewResponseProcessor() *ResponseProcessor {
	return &ResponseProcessor{}
}

// Process parsea la respuesta cruda. Con ErrQRDecode devuelve igualmente la
// referencia ya derivada; con ErrResponseParse no devuelve nada.
func (p *ResponseProcessor) Process(raw string) (*Verification, error) {
	resp, err := domvms.ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	out := &Verification{Reference: domvms.Reference{Number: resp.InvoiceNumber}}
	if resp.SDCDateTime != "" {
		t, err := domvms.ParseSDCTime(resp.SDCDateTime)
		if err != nil {
			return nil, err
		}
		out.Reference.Time = &t
	}

	if resp.VerificationQRCode == "" {
		return out, errors.WithDetail(domain.ErrQRDecode, "la respuesta no incluye verificationQRCode")
	}
	qr, err := DecodeQR(resp.VerificationQRCode)
	if err != nil {
		return out, err
	}
	out.QRCode = qr
	return out, nil
}

// DecodeQR decodifica la imagen base64 (con o sin cabecera data-URI) y la
// re-codifica como PNG.
func DecodeQR(encoded string) ([]byte, error) {
	s := encoded
	if strings.HasPrefix(s, "data:image") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "base64 del QR"), domain.ErrQRDecode)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "imagen del QR"), domain.ErrQRDecode)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "re-codificar QR a PNG"), domain.ErrQRDecode)
	}
	return buf.Bytes(), nil
}
