package vms

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	domvms "github.com/jhoicas/vms-fiscal/internal/domain/vms"
	pkgvms "github.com/jhoicas/vms-fiscal/pkg/vms"
)

const (
	maxResponseBytes     = 1 << 20 // 1 MB
	overflowPreviewBytes = 4 << 10
)

// TransportFactory construye el RoundTripper para una configuración TLS de cliente.
type TransportFactory func(cfg *tls.Config) http.RoundTripper

// GatewayClient envía payloads al V-SDC por TLS mutuo. Un solo intento por
// llamada: no hay reintentos automáticos.
type GatewayClient struct {
	url            string
	connectTimeout time.Duration
	requestTimeout time.Duration
	rootCAs        *x509.CertPool
	keyPairs       *KeyPairLoader
	newTransport   TransportFactory
	now            func() time.Time
}

// ClientOption configura el GatewayClient.
type ClientOption func(*GatewayClient)

func WithURL(url string) ClientOption { return func(c *GatewayClient) { c.url = url } }

func WithTimeouts(connect, request time.Duration) ClientOption {
	return func(c *GatewayClient) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if request > 0 {
			c.requestTimeout = request
		}
	}
}

// WithRootCAs raíces para validar el certificado del gateway (nil = sistema).
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(c *GatewayClient) { c.rootCAs = pool }
}

func WithKeyPairLoader(l *KeyPairLoader) ClientOption {
	return func(c *GatewayClient) { c.keyPairs = l }
}

func WithTransportFactory(f TransportFactory) ClientOption {
	return func(c *GatewayClient) { c.newTransport = f }
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *GatewayClient) { c.now = now }
}

// NewGatewayClient valores por defecto: endpoint sandbox, 10 s de conexión, 60 s de respuesta.
func NewGatewayClient(opts ...ClientOption) *GatewayClient {
	c := &GatewayClient{
		url:            pkgvms.DefaultGatewayURL,
		connectTimeout: 10 * time.Second,
		requestTimeout: 60 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keyPairs == nil {
		c.keyPairs = NewKeyPairLoader(0)
	}
	if c.newTransport == nil {
		c.newTransport = c.defaultTransport
	}
	return c
}

func (c *GatewayClient) defaultTransport(cfg *tls.Config) http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: c.connectTimeout}).DialContext,
		TLSClientConfig:       cfg,
		TLSHandshakeTimeout:   c.connectTimeout,
		ResponseHeaderTimeout: c.requestTimeout,
		MaxIdleConns:          1,
		IdleConnTimeout:       30 * time.Second,
	}
}

// ValidateCredential verifica las precondiciones de envío. Cada violación es una
// variante distinta de ErrConfiguration.
func ValidateCredential(cred *entity.BranchCredential, now time.Time) error {
	switch {
	case cred == nil:
		return domain.ErrCredentialMissing
	case !cred.Active:
		return domain.ErrCredentialInactive
	case cred.Expired(now):
		return errors.WithDetailf(domain.ErrCredentialExpired, "venció el %s", cred.ExpiresAt.UTC().Format(time.RFC3339))
	case cred.ArchivePassword == "":
		return domain.ErrCredentialPasswordMissing
	case cred.PAC == "":
		return domain.ErrCredentialPACMissing
	}
	return nil
}

// Submit envía el payload presentando el certificado de la sucursal. Devuelve el
// cuerpo de una respuesta 200/201 tal cual. Las precondiciones se validan antes
// de cualquier I/O de red. Una respuesta de más de 1 MB es error, aun con 2xx.
func (c *GatewayClient) Submit(ctx context.Context, payload *domvms.Payload, cred *entity.BranchCredential) (string, error) {
	if err := ValidateCredential(cred, c.now()); err != nil {
		return "", err
	}
	pair, err := c.keyPairs.Load(cred)
	if err != nil {
		return "", err
	}
	body, err := payload.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "serializar payload VMS")
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{pair},
		RootCAs:      c.rootCAs,
		MinVersion:   tls.VersionTLS12,
	}
	transport := c.newTransport(tlsCfg)
	if t, ok := transport.(interface{ CloseIdleConnections() }); ok {
		defer t.CloseIdleConnections()
	}
	httpClient := &http.Client{Transport: transport, Timeout: c.connectTimeout + c.requestTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "crear request VMS")
	}
	req.Header.Set("Content-Type", pkgvms.ContentTypeJSON)
	req.Header.Set("Accept", pkgvms.ContentTypeJSON)
	req.Header.Set(pkgvms.HeaderPAC, cred.PAC)

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.NewGatewayError(0, "", errors.Wrap(ctx.Err(), "timeout o cancelación"))
		}
		return "", domain.NewGatewayError(0, "", err)
	}
	defer resp.Body.Close()

	// un byte extra distingue "justo en el límite" de "truncado"
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", domain.NewGatewayError(resp.StatusCode, string(raw), errors.Wrapf(err, "leer respuesta (status %d)", resp.StatusCode))
	}
	if len(raw) > maxResponseBytes {
		return "", domain.NewGatewayError(resp.StatusCode, string(raw[:overflowPreviewBytes]),
			errors.Newf("respuesta del gateway supera %d bytes (status %d)", maxResponseBytes, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", domain.NewGatewayError(resp.StatusCode, string(raw), nil)
	}
	return string(raw), nil
}
