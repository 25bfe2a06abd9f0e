package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/vms-fiscal/pkg/jwt"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Auth        authUseCase
	Credentials credentialUseCase
	Documents   documentUseCase
	Submissions submissionUseCase
	Batch       batchUseCase
	JWTSecret   string
	Logger      *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	log := deps.Logger.Component("http")

	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleOperator)
	adminOnly := RequireRole(jwt.RoleAdmin)

	// Auth: login público, alta de operadores protegida
	authHandler := NewAuthHandler(deps.Auth, log)
	api.Post("/auth/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Post("/auth/operators", adminOnly, authHandler.RegisterOperator)

	// Credenciales VMS
	credentials := protected.Group("/credentials")
	credentialHandler := NewCredentialHandler(deps.Credentials, log)
	credentials.Get("/expiring", anyRole, credentialHandler.Expiring)
	credentials.Post("/", adminOnly, credentialHandler.Register)
	credentials.Post("/:branch_id/provision", adminOnly, RequireBranchParam("branch_id"), credentialHandler.Provision)
	credentials.Get("/:branch_id", anyRole, RequireBranchParam("branch_id"), credentialHandler.Get)

	// Documentos fiscales
	documents := protected.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Documents, deps.Submissions, deps.Batch, log)
	documents.Post("/", anyRole, documentHandler.Register)
	documents.Post("/submit-batch", adminOnly, documentHandler.SubmitBatch)
	documents.Get("/:id/status", anyRole, documentHandler.Status)
	documents.Post("/:id/submit", anyRole, documentHandler.Submit)
	documents.Post("/:id/copy", anyRole, documentHandler.SubmitCopy)
	documents.Get("/:id/qr", anyRole, documentHandler.QRCode)
}
