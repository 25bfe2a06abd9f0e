package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/application/fiscal"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// credentialUseCase lo implementa *fiscal.CredentialService.
type credentialUseCase interface {
	Register(ctx context.Context, req dto.RegisterCredentialRequest) (*dto.CredentialResponse, error)
	Provision(ctx context.Context, branchID string) (*dto.ProvisionResponse, error)
	Get(ctx context.Context, branchID string) (*dto.CredentialResponse, error)
	ExpiringCredentials(ctx context.Context) ([]dto.ExpiringCredentialResponse, error)
}

var _ credentialUseCase = (*fiscal.CredentialService)(nil)

// CredentialHandler credenciales VMS por sucursal.
type CredentialHandler struct {
	uc  credentialUseCase
	log *logger.Logger
}

// NewCredentialHandler construye el handler.
func NewCredentialHandler(uc credentialUseCase, log *logger.Logger) *CredentialHandler {
	return &CredentialHandler{uc: uc, log: log}
}

// Register registra el .pfx de una sucursal (queda inactivo).
// POST /api/credentials
func (h *CredentialHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterCredentialRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if !canAccessBranch(c, in.BranchID) {
		return forbiddenBranch(c)
	}
	out, err := h.uc.Register(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Provision extrae certificado y llave y activa la credencial.
// POST /api/credentials/:branch_id/provision
func (h *CredentialHandler) Provision(c *fiber.Ctx) error {
	out, err := h.uc.Provision(c.UserContext(), c.Params("branch_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Get estado de la credencial de la sucursal.
// GET /api/credentials/:branch_id
func (h *CredentialHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), c.Params("branch_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Expiring credenciales en ventana de aviso de vencimiento, solo de las
// sucursales a las que el token tiene acceso.
// GET /api/credentials/expiring
func (h *CredentialHandler) Expiring(c *fiber.Ctx) error {
	list, err := h.uc.ExpiringCredentials(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	list = lo.Filter(list, func(e dto.ExpiringCredentialResponse, _ int) bool {
		return canAccessBranch(c, e.BranchID)
	})
	if list == nil {
		list = []dto.ExpiringCredentialResponse{}
	}
	return c.JSON(fiber.Map{"items": list})
}
