package repository

import (
	"context"

	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

// OperatorRepository puerto de persistencia para operadores de la API.
type OperatorRepository interface {
	// Create devuelve domain.ErrDuplicate si el email ya existe.
	Create(ctx context.Context, op *entity.Operator) error
	// FindByEmail devuelve (nil, nil) si no existe.
	FindByEmail(ctx context.Context, email string) (*entity.Operator, error)
}
