package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	apphttp "github.com/jhoicas/vms-fiscal/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/vms-fiscal/pkg/jwt"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes de casos de uso
// ──────────────────────────────────────────────────────────────────────────────

const docID = "7b0c2a8e-5b8e-4a54-9d4e-2f1c3c9d0a11"

type fakeCredentials struct {
	registered []dto.RegisterCredentialRequest
	provision  error
	expiring   []dto.ExpiringCredentialResponse
}

func (f *fakeCredentials) Register(_ context.Context, req dto.RegisterCredentialRequest) (*dto.CredentialResponse, error) {
	f.registered = append(f.registered, req)
	return &dto.CredentialResponse{ID: "cred-1", BranchID: req.BranchID, SystemName: req.SystemName}, nil
}

func (f *fakeCredentials) Provision(_ context.Context, branchID string) (*dto.ProvisionResponse, error) {
	if f.provision != nil {
		return nil, f.provision
	}
	return &dto.ProvisionResponse{Credential: dto.CredentialResponse{BranchID: branchID, Active: true}, Subject: "CN=Sucursal"}, nil
}

func (f *fakeCredentials) Get(_ context.Context, branchID string) (*dto.CredentialResponse, error) {
	return &dto.CredentialResponse{BranchID: branchID}, nil
}

func (f *fakeCredentials) ExpiringCredentials(context.Context) ([]dto.ExpiringCredentialResponse, error) {
	return f.expiring, nil
}

type fakeDocuments struct {
	doc *dto.DocumentResponse
	qr  []byte
}

func (f *fakeDocuments) Register(_ context.Context, req dto.RegisterDocumentRequest) (*dto.DocumentResponse, error) {
	return &dto.DocumentResponse{ID: docID, BranchID: req.BranchID, Number: req.Number}, nil
}

func (f *fakeDocuments) Status(_ context.Context, id string) (*dto.DocumentResponse, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeDocuments) QRCode(_ context.Context, _ string, variant entity.SubmissionVariant) ([]byte, error) {
	if variant == entity.VariantCopy || f.qr == nil {
		return nil, domain.ErrNotFound
	}
	return f.qr, nil
}

type fakeSubmissions struct {
	err   error
	calls []string
}

func (f *fakeSubmissions) Submit(_ context.Context, id string) (*dto.SubmissionResult, error) {
	f.calls = append(f.calls, "primary:"+id)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SubmissionResult{DocumentID: id, Variant: "primary", State: "verified", ReferenceNumber: "SDC-1/1"}, nil
}

func (f *fakeSubmissions) SubmitCopy(_ context.Context, id string) (*dto.SubmissionResult, error) {
	f.calls = append(f.calls, "copy:"+id)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SubmissionResult{DocumentID: id, Variant: "copy", State: "verified"}, nil
}

type fakeBatch struct{ req dto.SubmitBatchRequest }

func (f *fakeBatch) SubmitBatch(_ context.Context, req dto.SubmitBatchRequest) (*dto.SubmitBatchResponse, error) {
	f.req = req
	return &dto.SubmitBatchResponse{Succeeded: len(req.DocumentIDs)}, nil
}

type fakeAuth struct{ registered []dto.RegisterOperatorRequest }

func (f *fakeAuth) RegisterOperator(_ context.Context, in dto.RegisterOperatorRequest) (*dto.OperatorResponse, error) {
	f.registered = append(f.registered, in)
	return &dto.OperatorResponse{ID: "op-1", Email: in.Email, BranchID: in.BranchID, Role: in.Role}, nil
}

func (f *fakeAuth) Login(_ context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	if in.Password != "secreto123" {
		return nil, domain.ErrUnauthorized
	}
	return &dto.LoginResponse{Token: "tok", Operator: dto.OperatorResponse{Email: in.Email}}, nil
}

type routerFixture struct {
	app   *fiber.App
	auth  *fakeAuth
	creds *fakeCredentials
	docs  *fakeDocuments
	subs  *fakeSubmissions
	batch *fakeBatch
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		auth:  &fakeAuth{},
		creds: &fakeCredentials{},
		docs: &fakeDocuments{doc: &dto.DocumentResponse{
			ID: docID, BranchID: testBranchID, IssuedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		}},
		subs:  &fakeSubmissions{},
		batch: &fakeBatch{},
	}
	f.app = fiber.New()
	apphttp.Router(f.app, apphttp.RouterDeps{
		Auth:        f.auth,
		Credentials: f.creds,
		Documents:   f.docs,
		Submissions: f.subs,
		Batch:       f.batch,
		JWTSecret:   testJWTSecret,
		Logger:      logger.Nop(),
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, auth string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_LoginPublico(t *testing.T) {
	f := newRouterFixture()

	resp := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "caja@suva.fj", "password": "secreto123"})
	out := decode[dto.LoginResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tok", out.Token)

	resp = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "caja@suva.fj", "password": "otra"})
	errOut := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.CodeUnauthorized, errOut.Code)
}

func TestAuth_AltaOperadorRequiereAdmin(t *testing.T) {
	f := newRouterFixture()
	body := map[string]any{"email": "caja@suva.fj", "password": "secreto123", "branch_id": testBranchID}

	resp := f.do(t, http.MethodPost, "/api/auth/operators", "", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/operators", bearer(t, testBranchID, pkgjwt.RoleOperator), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/operators", bearer(t, "otra", pkgjwt.RoleAdmin), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.auth.registered)

	resp = f.do(t, http.MethodPost, "/api/auth/operators", bearer(t, testBranchID, pkgjwt.RoleAdmin), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, f.auth.registered, 1)
}

func TestRouter_RutasProtegidasSinToken(t *testing.T) {
	f := newRouterFixture()

	resp := f.do(t, http.MethodGet, "/api/documents/"+docID+"/status", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Credenciales
// ──────────────────────────────────────────────────────────────────────────────

func TestCredentials_RegisterSoloAdmin(t *testing.T) {
	f := newRouterFixture()
	body := map[string]any{"branch_id": testBranchID, "system_name": "suva", "archive_filename": "a.pfx", "archive": "AAAA"}

	resp := f.do(t, http.MethodPost, "/api/credentials", bearer(t, testBranchID, pkgjwt.RoleOperator), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.creds.registered)

	resp = f.do(t, http.MethodPost, "/api/credentials", bearer(t, "", pkgjwt.RoleAdmin), body)
	out := decode[dto.CredentialResponse](t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testBranchID, out.BranchID)
	require.Len(t, f.creds.registered, 1)
	assert.Equal(t, "suva", f.creds.registered[0].SystemName)
}

func TestCredentials_RegisterOtraSucursalProhibido(t *testing.T) {
	f := newRouterFixture()
	body := map[string]any{"branch_id": "otra", "system_name": "suva", "archive_filename": "a.pfx", "archive": "AAAA"}

	resp := f.do(t, http.MethodPost, "/api/credentials", bearer(t, testBranchID, pkgjwt.RoleAdmin), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.creds.registered)
}

func TestCredentials_ProvisionErrorDeArchivo(t *testing.T) {
	f := newRouterFixture()
	f.creds.provision = domain.ErrArchiveAuth

	resp := f.do(t, http.MethodPost, "/api/credentials/"+testBranchID+"/provision", bearer(t, "", pkgjwt.RoleAdmin), nil)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.CodeArchive, out.Code)
}

func TestCredentials_ExpiringFiltraPorSucursalDelToken(t *testing.T) {
	f := newRouterFixture()
	f.creds.expiring = []dto.ExpiringCredentialResponse{
		{BranchID: testBranchID, DaysToExpiry: 5},
		{BranchID: "otra", DaysToExpiry: 1},
	}

	resp := f.do(t, http.MethodGet, "/api/credentials/expiring", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	out := decode[struct {
		Items []dto.ExpiringCredentialResponse `json:"items"`
	}](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Items, 1)
	assert.Equal(t, testBranchID, out.Items[0].BranchID)
}

func TestCredentials_ExpiringSinSucursalVeTodas(t *testing.T) {
	f := newRouterFixture()
	f.creds.expiring = []dto.ExpiringCredentialResponse{
		{BranchID: testBranchID, DaysToExpiry: 5},
		{BranchID: "otra", DaysToExpiry: 1},
	}

	resp := f.do(t, http.MethodGet, "/api/credentials/expiring", bearer(t, "", pkgjwt.RoleAdmin), nil)
	out := decode[struct {
		Items []dto.ExpiringCredentialResponse `json:"items"`
	}](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out.Items, 2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Documentos
// ──────────────────────────────────────────────────────────────────────────────

func TestDocuments_SubmitVerificado(t *testing.T) {
	f := newRouterFixture()

	resp := f.do(t, http.MethodPost, "/api/documents/"+docID+"/submit", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	out := decode[dto.SubmissionResult](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "verified", out.State)
	assert.Equal(t, []string{"primary:" + docID}, f.subs.calls)
}

func TestDocuments_SubmitOtraSucursalNoEnvia(t *testing.T) {
	f := newRouterFixture()

	resp := f.do(t, http.MethodPost, "/api/documents/"+docID+"/submit", bearer(t, "otra", pkgjwt.RoleOperator), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.subs.calls)
}

func TestDocuments_SubmitErroresMapeados(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ya enviado", domain.ErrAlreadySubmitted, http.StatusConflict, domain.CodeAlreadySubmitted},
		{"copia sin original", domain.ErrNotSubmitted, http.StatusConflict, domain.CodeNotSubmitted},
		{"sin credencial", domain.ErrCredentialMissing, http.StatusUnprocessableEntity, domain.CodeConfiguration},
		{"pago incompleto", domain.ErrPaymentIncomplete, http.StatusUnprocessableEntity, domain.CodePaymentPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture()
			f.subs.err = tc.err

			resp := f.do(t, http.MethodPost, "/api/documents/"+docID+"/copy", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
			out := decode[dto.ErrorResponse](t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, out.Code)
		})
	}
}

func TestDocuments_RechazoDelGatewayIncluyeCuerpo(t *testing.T) {
	f := newRouterFixture()
	f.subs.err = domain.NewGatewayError(http.StatusBadRequest, `{"message":"TIN inválido"}`, nil)

	resp := f.do(t, http.MethodPost, "/api/documents/"+docID+"/submit", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, domain.CodeGateway, out.Code)
	assert.EqualValues(t, http.StatusBadRequest, out.Details["gateway_status"])
	assert.Equal(t, `{"message":"TIN inválido"}`, out.Details["gateway_body"])
}

func TestDocuments_ErrorInternoNoFiltraDetalle(t *testing.T) {
	f := newRouterFixture()
	f.subs.err = io.ErrUnexpectedEOF

	resp := f.do(t, http.MethodPost, "/api/documents/"+docID+"/submit", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "error interno", out.Message)
}

func TestDocuments_StatusNoEncontrado(t *testing.T) {
	f := newRouterFixture()

	resp := f.do(t, http.MethodGet, "/api/documents/otro-id/status", bearer(t, "", pkgjwt.RoleAdmin), nil)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.CodeNotFound, out.Code)
}

func TestDocuments_QRDevuelvePNG(t *testing.T) {
	f := newRouterFixture()
	f.docs.qr = []byte("\x89PNG\r\n\x1a\n")

	resp := f.do(t, http.MethodGet, "/api/documents/"+docID+"/qr", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, f.docs.qr, raw)

	resp = f.do(t, http.MethodGet, "/api/documents/"+docID+"/qr?variant=copy", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/documents/"+docID+"/qr?variant=otra", bearer(t, testBranchID, pkgjwt.RoleOperator), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocuments_BatchSoloAdmin(t *testing.T) {
	f := newRouterFixture()
	body := map[string]any{"document_ids": []string{docID}}

	resp := f.do(t, http.MethodPost, "/api/documents/submit-batch", bearer(t, testBranchID, pkgjwt.RoleOperator), body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/documents/submit-batch", bearer(t, "", pkgjwt.RoleAdmin), body)
	out := decode[dto.SubmitBatchResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, []string{docID}, f.batch.req.DocumentIDs)
}

func TestDocuments_BodyInvalido(t *testing.T) {
	f := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString("{no-json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, testBranchID, pkgjwt.RoleOperator))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	out := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", out.Code)
}
