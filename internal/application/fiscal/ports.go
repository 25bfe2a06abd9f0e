// Package fiscal casos de uso del gateway VMS: registro y aprovisionamiento de
// credenciales, registro de documentos y envío (principal, copia y por lote).
package fiscal

import (
	"context"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	domvms "github.com/jhoicas/vms-fiscal/internal/domain/vms"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
)

// TxFunc callback con repos atados a la transacción.
type TxFunc = func(docs repository.DocumentRepository, creds repository.CredentialRepository) error

// TxRunner ejecuta callbacks dentro de una transacción. Las variantes Locked
// toman antes el lock de fila correspondiente y lo sostienen hasta el commit.
type TxRunner interface {
	Run(ctx context.Context, fn TxFunc) error
	RunDocumentLocked(ctx context.Context, documentID string, fn TxFunc) error
	RunCredentialLocked(ctx context.Context, branchID string, fn TxFunc) error
}

// Gateway envía un payload con la credencial de la sucursal y devuelve el cuerpo crudo.
type Gateway interface {
	Submit(ctx context.Context, payload *domvms.Payload, cred *entity.BranchCredential) (string, error)
}

// ResponseProcessor extrae referencia y QR de la respuesta del gateway.
type ResponseProcessor interface {
	Process(raw string) (*infravms.Verification, error)
}

// ArchiveProvisioner abre el .pfx y escribe el material en disco.
type ArchiveProvisioner interface {
	Provision(archiveBlob, password string) (*infravms.KeyMaterial, error)
	Persist(cred *entity.BranchCredential, m *infravms.KeyMaterial) error
}

// KeyPairCache se invalida cuando cambia el material de una credencial.
type KeyPairCache interface {
	Forget()
}

var (
	_ Gateway            = (*infravms.GatewayClient)(nil)
	_ ResponseProcessor  = (*infravms.ResponseProcessor)(nil)
	_ ArchiveProvisioner = (*infravms.Provisioner)(nil)
	_ KeyPairCache       = (*infravms.KeyPairLoader)(nil)
)
