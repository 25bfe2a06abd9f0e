package entity

import (
	"path/filepath"
	"time"
)

// Nombres fijos de los archivos derivados, junto al .pfx de la sucursal.
const (
	CertificateFilename = "certificate.pem"
	PrivateKeyFilename  = "private_key.pem"
	ArchiveExtension    = ".pfx"
)

// BranchCredential credencial de firma VMS de una sucursal (una por sucursal).
// Active solo pasa a true cuando el aprovisionamiento extrajo llave y certificado.
type BranchCredential struct {
	ID              string
	BranchID        string
	SystemName      string // nombre del sistema V-SDC; define el subdirectorio
	ArchiveFilename string // nombre original del .pfx
	Archive         string // PKCS#12 en base64 (codificación de almacenamiento)
	ArchivePassword string
	UID             string // identificador asignado por el gateway
	PAC             string // cabecera PAC del gateway
	ArchivePath     string // ruta del .pfx en disco; los PEM se escriben en su directorio
	ExpiresAt       *time.Time
	Active          bool
	CertificatePEM  string
	PrivateKeyPEM   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired indica si la credencial venció respecto a now.
func (c *BranchCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// HasMaterial indica si ya existen certificado y llave extraídos.
func (c *BranchCredential) HasMaterial() bool {
	return c.CertificatePEM != "" && c.PrivateKeyPEM != ""
}

// Usable es el flag de activación derivado: material presente, no vencida,
// contraseña y PAC definidos.
func (c *BranchCredential) Usable(now time.Time) bool {
	return c.Active && c.HasMaterial() && !c.Expired(now) &&
		c.ArchivePassword != "" && c.PAC != ""
}

// CertificatePath ruta determinística del certificado PEM.
func (c *BranchCredential) CertificatePath() string {
	return filepath.Join(filepath.Dir(c.ArchivePath), CertificateFilename)
}

// PrivateKeyPath ruta determinística de la llave privada PEM.
func (c *BranchCredential) PrivateKeyPath() string {
	return filepath.Join(filepath.Dir(c.ArchivePath), PrivateKeyFilename)
}

// DaysToExpiry días calendario (UTC) que faltan para el vencimiento; -1 si no tiene fecha.
func (c *BranchCredential) DaysToExpiry(now time.Time) int {
	if c.ExpiresAt == nil {
		return -1
	}
	exp := c.ExpiresAt.UTC()
	ref := now.UTC()
	expDay := time.Date(exp.Year(), exp.Month(), exp.Day(), 0, 0, 0, 0, time.UTC)
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return int(expDay.Sub(refDay).Hours() / 24)
}
