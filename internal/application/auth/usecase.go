// Package auth alta de operadores y login con emisión de JWT.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	"github.com/jhoicas/vms-fiscal/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase casos de uso de autenticación: alta de operadores y login.
type AuthUseCase struct {
	operators repository.OperatorRepository
	jwtCfg    JWTConfig
	cost      int
	now       func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(operators repository.OperatorRepository, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{operators: operators, jwtCfg: jwtCfg, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost reemplaza el costo de bcrypt (tests).
func (uc *AuthUseCase) WithHashCost(cost int) *AuthUseCase {
	uc.cost = cost
	return uc
}

// RegisterOperator crea un operador con el password hasheado. Sin rol queda como operator.
func (uc *AuthUseCase) RegisterOperator(ctx context.Context, in dto.RegisterOperatorRequest) (*dto.OperatorResponse, error) {
	if err := dto.ValidateRequest(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hashear password")
	}
	now := uc.now().UTC()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := in.Name
	if name == "" {
		name = email
	}
	role := in.Role
	if role == "" {
		role = entity.RoleOperator
	}
	op := &entity.Operator{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		BranchID:     in.BranchID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.operators.Create(ctx, op); err != nil {
		return nil, err
	}
	out := toOperatorResponse(op)
	return &out, nil
}

// Login verifica email/password y emite un JWT con rol y sucursal del operador.
// Email inexistente y password incorrecto responden igual.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := dto.ValidateRequest(in); err != nil {
		return nil, err
	}
	op, err := uc.operators.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, errors.Wrap(domain.ErrUnauthorized, "credenciales inválidas")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(in.Password)); err != nil {
		return nil, errors.Wrap(domain.ErrUnauthorized, "credenciales inválidas")
	}
	if !op.Active {
		return nil, errors.Wrap(domain.ErrForbidden, "operador inactivo")
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, op.ID, op.BranchID, op.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, Operator: toOperatorResponse(op)}, nil
}

func toOperatorResponse(op *entity.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{
		ID:        op.ID,
		Email:     op.Email,
		Name:      op.Name,
		Role:      op.Role,
		BranchID:  op.BranchID,
		Active:    op.Active,
		CreatedAt: op.CreatedAt,
	}
}
