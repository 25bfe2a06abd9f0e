package vms_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
)

// Contraseña de los .pfx de testdata: branch.pfx y chain.pfx usan PBE-SHA1-3DES,
// modern.pfx el formato por defecto de OpenSSL 3 (PBES2, AES-256-CBC, MAC SHA-256).
const testPFXPassword = "secreto123"

func loadArchive(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func parseCertPEM(t *testing.T, data []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE", block.Type)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestProvision_ExtraeLlaveYCertificado(t *testing.T) {
	m, err := infravms.NewProvisioner().Provision(loadArchive(t, "branch.pfx"), testPFXPassword)
	require.NoError(t, err)

	cert := parseCertPEM(t, m.CertificatePEM)
	assert.Equal(t, "Sucursal Suva", cert.Subject.CommonName)
	assert.Equal(t, "Sucursal Suva", m.Subject)
	assert.Equal(t, cert.NotAfter.UTC(), m.NotAfter)

	block, _ := pem.Decode(m.PrivateKeyPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type, "la llave se emite en PKCS#8 sin cifrar")
	_, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)

	_, err = tls.X509KeyPair(m.CertificatePEM, m.PrivateKeyPEM)
	assert.NoError(t, err, "certificado y llave deben formar un par válido")
}

func TestProvision_ConCadenaUsaElCertificadoHoja(t *testing.T) {
	m, err := infravms.NewProvisioner().Provision(loadArchive(t, "chain.pfx"), testPFXPassword)
	require.NoError(t, err)

	cert := parseCertPEM(t, m.CertificatePEM)
	assert.Equal(t, "Sucursal Lautoka", cert.Subject.CommonName, "el certificado de la CA se ignora")
	_, err = tls.X509KeyPair(m.CertificatePEM, m.PrivateKeyPEM)
	assert.NoError(t, err)
}

func TestProvision_ArchivoOpenSSL3PBES2(t *testing.T) {
	m, err := infravms.NewProvisioner().Provision(loadArchive(t, "modern.pfx"), testPFXPassword)
	require.NoError(t, err)

	cert := parseCertPEM(t, m.CertificatePEM)
	assert.Equal(t, "Sucursal Nadi", cert.Subject.CommonName)
	_, err = tls.X509KeyPair(m.CertificatePEM, m.PrivateKeyPEM)
	assert.NoError(t, err)

	_, err = infravms.NewProvisioner().Provision(loadArchive(t, "modern.pfx"), "otra-clave")
	assert.True(t, errors.Is(err, domain.ErrArchiveAuth))
}

func TestProvision_ArchivoCodificadoModern(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "Sucursal Labasa"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pfx, err := pkcs12.Modern.Encode(key, cert, nil, testPFXPassword)
	require.NoError(t, err)

	m, err := infravms.NewProvisioner().Provision(base64.StdEncoding.EncodeToString(pfx), testPFXPassword)
	require.NoError(t, err)
	assert.Equal(t, "Sucursal Labasa", m.Subject)
	assert.Equal(t, cert.NotAfter.UTC(), m.NotAfter)
	_, err = tls.X509KeyPair(m.CertificatePEM, m.PrivateKeyPEM)
	assert.NoError(t, err)
}

func TestProvision_ContrasenaIncorrecta(t *testing.T) {
	_, err := infravms.NewProvisioner().Provision(loadArchive(t, "branch.pfx"), "otra-clave")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArchiveAuth))
	assert.False(t, errors.Is(err, domain.ErrArchiveDecode))
}

func TestProvision_Base64Invalido(t *testing.T) {
	_, err := infravms.NewProvisioner().Provision("esto no es base64!!", testPFXPassword)
	assert.True(t, errors.Is(err, domain.ErrArchiveDecode))

	_, err = infravms.NewProvisioner().Provision("", testPFXPassword)
	assert.True(t, errors.Is(err, domain.ErrArchiveDecode))
}

func TestProvision_EstructuraCorrupta(t *testing.T) {
	blob := base64.StdEncoding.EncodeToString([]byte("no es un PKCS#12"))
	_, err := infravms.NewProvisioner().Provision(blob, testPFXPassword)
	assert.True(t, errors.Is(err, domain.ErrArchiveAuth))
}

func TestDecodeArchive_AdmiteSaltosDeLinea(t *testing.T) {
	data, err := infravms.DecodeArchive("aG9s\nYQ==\r\n")
	require.NoError(t, err)
	assert.Equal(t, "hola", string(data))
}

func TestPersist_EscribeArchivosConPermisosRestrictivos(t *testing.T) {
	p := infravms.NewProvisioner()
	archive := loadArchive(t, "branch.pfx")
	m, err := p.Provision(archive, testPFXPassword)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "vsdc", "SUVA-01")
	cred := &entity.BranchCredential{
		ID:          "cred-1",
		Archive:     archive,
		ArchivePath: filepath.Join(dir, "branch.pfx"),
	}
	require.NoError(t, p.Persist(cred, m))

	certOnDisk, err := os.ReadFile(filepath.Join(dir, "certificate.pem"))
	require.NoError(t, err)
	assert.Equal(t, m.CertificatePEM, certOnDisk)

	keyOnDisk, err := os.ReadFile(filepath.Join(dir, "private_key.pem"))
	require.NoError(t, err)
	assert.Equal(t, m.PrivateKeyPEM, keyOnDisk)

	pfxOnDisk, err := os.ReadFile(cred.ArchivePath)
	require.NoError(t, err)
	original, _ := base64.StdEncoding.DecodeString(archive)
	assert.Equal(t, original, pfxOnDisk)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
		info, err = os.Stat(filepath.Join(dir, "private_key.pem"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}
