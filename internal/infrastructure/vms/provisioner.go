package vms

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// KeyMaterial llave privada (PKCS#8) y certificado extraídos del archivo PKCS#12.
type KeyMaterial struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
	Subject        string
	NotAfter       time.Time
}

// Provisioner extrae el material de firma de los archivos .pfx de las sucursales.
type Provisioner struct{}

// NewProvisioner construye el aprovisionador.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// DecodeArchive decodifica la codificación de almacenamiento (base64, admite saltos de línea).
func DecodeArchive(archiveBlob string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, archiveBlob)
	if cleaned == "" {
		return nil, errors.Mark(errors.New("archivo de credencial vacío"), domain.ErrArchiveDecode)
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decodificar base64 del .pfx"), domain.ErrArchiveDecode)
	}
	return data, nil
}

// Provision abre el archivo con la contraseña y devuelve certificado y llave en PEM.
// Admite cifrado PBES2/AES (OpenSSL 3) y los formatos heredados 3DES/RC2. Los
// certificados de cadena se ignoran: se conserva el que corresponde a la llave.
func (p *Provisioner) Provision(archiveBlob, password string) (*KeyMaterial, error) {
	data, err := DecodeArchive(archiveBlob)
	if err != nil {
		return nil, err
	}

	priv, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "abrir .pfx"), domain.ErrArchiveAuth)
	}
	cert, ok := certificateForKey(priv, append([]*x509.Certificate{leaf}, chain...))
	if !ok {
		return nil, errors.Mark(errors.New("ningún certificado del .pfx corresponde a la llave privada"), domain.ErrArchiveAuth)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "serializar llave privada"), domain.ErrArchiveAuth)
	}
	return &KeyMaterial{
		CertificatePEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}),
		PrivateKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		Subject:        cert.Subject.CommonName,
		NotAfter:       cert.NotAfter.UTC(),
	}, nil
}

// certificateForKey el primer certificado cuya llave pública es la de priv.
func certificateForKey(priv any, certs []*x509.Certificate) (*x509.Certificate, bool) {
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, false
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return nil, false
	}
	for _, c := range certs {
		if c != nil && pub.Equal(c.PublicKey) {
			return c, true
		}
	}
	return nil, false
}

// Persist escribe en el directorio del .pfx el archivo original, certificate.pem y
// private_key.pem. Crea el directorio con permisos 0700 si no existe.
func (p *Provisioner) Persist(cred *entity.BranchCredential, m *KeyMaterial) error {
	if cred.ArchivePath == "" {
		return errors.Wrap(domain.ErrInvalidInput, "credencial sin ruta de archivo")
	}
	archive, err := DecodeArchive(cred.Archive)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cred.ArchivePath), dirPerm); err != nil {
		return errors.Wrap(err, "crear directorio de credencial")
	}
	files := []struct {
		path string
		data []byte
	}{
		{cred.ArchivePath, archive},
		{cred.CertificatePath(), m.CertificatePEM},
		{cred.PrivateKeyPath(), m.PrivateKeyPEM},
	}
	for _, f := range files {
		if err := writeFileAtomic(f.path, f.data); err != nil {
			return err
		}
	}
	return nil
}

// writeFileAtomic escribe en un temporal del mismo directorio y renombra.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "crear temporal para %s", path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "escribir %s", path)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "permisos de %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "cerrar %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "renombrar %s", path)
	}
	return nil
}
