package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
)

var _ repository.OperatorRepository = (*OperatorRepo)(nil)

// OperatorRepo implementación del puerto OperatorRepository sobre PostgreSQL.
type OperatorRepo struct {
	q Querier
}

// NewOperatorRepository construye el adaptador de persistencia para operadores.
func NewOperatorRepository(q Querier) *OperatorRepo {
	return &OperatorRepo{q: q}
}

// Create persiste un nuevo operador.
func (r *OperatorRepo) Create(ctx context.Context, op *entity.Operator) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO operators (id, email, password_hash, name, role, branch_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, q,
		op.ID, op.Email, op.PasswordHash, op.Name, op.Role, nullIfEmpty(op.BranchID), op.Active,
		op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "el email %s ya está registrado", op.Email), domain.ErrDuplicate)
		}
		return errors.Wrap(err, "insert operator")
	}
	return nil
}

// FindByEmail obtiene un operador por email (sin distinguir mayúsculas).
func (r *OperatorRepo) FindByEmail(ctx context.Context, email string) (*entity.Operator, error) {
	const q = `
		SELECT id, email, password_hash, name, role, branch_id, active, created_at, updated_at
		FROM operators WHERE lower(email) = lower($1)`
	var (
		op       entity.Operator
		branchID *string
	)
	err := r.q.QueryRow(ctx, q, email).Scan(
		&op.ID, &op.Email, &op.PasswordHash, &op.Name, &op.Role, &branchID, &op.Active,
		&op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get operator by email")
	}
	op.BranchID = derefStr(branchID)
	return &op, nil
}
