package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/vms-fiscal/internal/application/auth"
	"github.com/jhoicas/vms-fiscal/internal/application/fiscal"
	"github.com/jhoicas/vms-fiscal/internal/infrastructure/postgres"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
	httpRouter "github.com/jhoicas/vms-fiscal/internal/interfaces/http"
	"github.com/jhoicas/vms-fiscal/pkg/config"
	"github.com/jhoicas/vms-fiscal/pkg/keylock"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("gateway", cfg.VMS.GatewayURL).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	operatorRepo := postgres.NewOperatorRepository(pool)
	credentialRepo := postgres.NewCredentialRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Gateway VMS: mTLS con el par certificado/llave de cada sucursal.
	keyPairs := infravms.NewKeyPairLoader(cfg.VMS.CertCacheTTL)
	gateway := infravms.NewGatewayClient(
		infravms.WithURL(cfg.VMS.GatewayURL),
		infravms.WithTimeouts(cfg.VMS.ConnectTimeout, cfg.VMS.RequestTimeout),
		infravms.WithKeyPairLoader(keyPairs),
	)
	locks := keylock.New()

	credentialSvc := fiscal.NewCredentialService(
		txRunner, credentialRepo, infravms.NewProvisioner(), keyPairs, locks, cfg.VMS.CredentialDir, log,
	)
	documentSvc := fiscal.NewDocumentService(txRunner, documentRepo, log)
	submissionSvc := fiscal.NewSubmissionService(txRunner, gateway, infravms.NewResponseProcessor(), locks, log)
	batch := fiscal.NewBatchSubmitter(submissionSvc, cfg.VMS.BatchConcurrency)
	authUC := auth.NewAuthUseCase(operatorRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "VMS Fiscal API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Auth:        authUC,
		Credentials: credentialSvc,
		Documents:   documentSvc,
		Submissions: submissionSvc,
		Batch:       batch,
		JWTSecret:   cfg.JWT.Secret,
		Logger:      log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
