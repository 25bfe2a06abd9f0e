package repository

import (
	"context"
	"time"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

// CredentialRepository define el puerto de persistencia para credenciales VMS por sucursal.
type CredentialRepository interface {
	// Create falla con domain.ErrDuplicate si la sucursal ya tiene credencial.
	Create(ctx context.Context, cred *entity.BranchCredential) error
	GetByID(ctx context.Context, id string) (*entity.BranchCredential, error)
	// GetByBranch devuelve nil, nil si la sucursal no tiene credencial.
	GetByBranch(ctx context.Context, branchID string) (*entity.BranchCredential, error)

	// SaveMaterial guarda certificado, llave, vencimiento, ruta y flag de activación.
	SaveMaterial(ctx context.Context, cred *entity.BranchCredential) error

	// ListExpiringBefore lista credenciales activas que vencen antes de limit.
	ListExpiringBefore(ctx context.Context, limit time.Time) ([]*entity.BranchCredential, error)
}
