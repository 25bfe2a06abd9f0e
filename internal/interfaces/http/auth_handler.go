package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/vms-fiscal/internal/application/auth"
	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

type authUseCase interface {
	RegisterOperator(ctx context.Context, in dto.RegisterOperatorRequest) (*dto.OperatorResponse, error)
	Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error)
}

var _ authUseCase = (*auth.AuthUseCase)(nil)

// AuthHandler maneja login y alta de operadores.
type AuthHandler struct {
	uc  authUseCase
	log *logger.Logger
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc authUseCase, log *logger.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, log: log}
}

// RegisterOperator alta de operador (solo admin). Un admin limitado a una
// sucursal solo puede crear operadores de esa sucursal.
// POST /api/auth/operators
func (h *AuthHandler) RegisterOperator(c *fiber.Ctx) error {
	var in dto.RegisterOperatorRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if scoped := GetBranchID(c); scoped != "" && in.BranchID != scoped {
		return forbiddenBranch(c)
	}
	out, err := h.uc.RegisterOperator(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Login verifica email/password y devuelve el token.
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
