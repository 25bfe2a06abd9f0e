// provision diagnostica un archivo .pfx de sucursal y, si abre, escribe
// certificate.pem y private_key.pem junto a una copia del archivo.
//
// Uso: go run ./cmd/provision -file sucursal.pfx -password secreto -out ./credentials/suva
// Con -dry-run solo diagnostica. La contraseña también se lee de VMS_ARCHIVE_PASSWORD.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

func main() {
	file := flag.String("file", "", "ruta del archivo .pfx")
	password := flag.String("password", os.Getenv("VMS_ARCHIVE_PASSWORD"), "contraseña del .pfx")
	out := flag.String("out", "", "directorio destino (por defecto el del .pfx)")
	dryRun := flag.Bool("dry-run", false, "solo diagnosticar, no escribir archivos")
	flag.Parse()

	log := logger.New(logger.Config{Env: "development", Level: "info"})

	if *file == "" {
		fmt.Fprintln(os.Stderr, "falta -file")
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("no se pudo leer el archivo")
	}
	log.Info().Str("file", *file).Int("bytes", len(raw)).Msg("archivo encontrado")

	blob := base64.StdEncoding.EncodeToString(raw)
	provisioner := infravms.NewProvisioner()
	material, err := provisioner.Provision(blob, *password)
	switch {
	case errors.Is(err, domain.ErrArchiveAuth):
		log.Fatal().Err(err).Msg("contraseña incorrecta o formato no soportado")
	case err != nil:
		log.Fatal().Err(err).Msg("no se pudo abrir el archivo")
	}

	now := time.Now().UTC()
	days := int(material.NotAfter.Sub(now).Hours() / 24)
	event := log.Info()
	if material.NotAfter.Before(now) {
		event = log.Warn()
	}
	event.Str("subject", material.Subject).
		Time("not_after", material.NotAfter).
		Int("days_to_expiry", days).
		Msg("certificado y llave extraídos")

	if *dryRun {
		return
	}

	dir := *out
	if dir == "" {
		dir = filepath.Dir(*file)
	}
	cred := &entity.BranchCredential{
		Archive:     blob,
		ArchivePath: filepath.Join(dir, filepath.Base(*file)),
	}
	if err := provisioner.Persist(cred, material); err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("no se pudieron escribir los archivos")
	}
	log.Info().
		Str("certificate", cred.CertificatePath()).
		Str("private_key", cred.PrivateKeyPath()).
		Msg("credencial aprovisionada")
}
