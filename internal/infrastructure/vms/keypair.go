package vms

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
)

// KeyPairLoader arma el tls.Certificate de una credencial y lo cachea por versión
// del material (hash del PEM), de modo que un re-aprovisionamiento invalida la entrada.
type KeyPairLoader struct {
	cache *gocache.Cache
}

// NewKeyPairLoader ttl <= 0 usa 30 minutos.
func NewKeyPairLoader(ttl time.Duration) *KeyPairLoader {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &KeyPairLoader{cache: gocache.New(ttl, 2*ttl)}
}

// Load usa el PEM guardado en la credencial; si no está, lee los archivos
// derivados junto al .pfx.
func (l *KeyPairLoader) Load(cred *entity.BranchCredential) (tls.Certificate, error) {
	certPEM, keyPEM := []byte(cred.CertificatePEM), []byte(cred.PrivateKeyPEM)
	if !cred.HasMaterial() {
		var err error
		certPEM, keyPEM, err = readMaterialFiles(cred)
		if err != nil {
			return tls.Certificate{}, err
		}
	}

	key := cacheKey(cred.ID, certPEM, keyPEM)
	if v, ok := l.cache.Get(key); ok {
		return v.(tls.Certificate), nil
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, errors.Mark(errors.Wrap(err, "cargar par certificado/llave"), domain.ErrConfiguration)
	}
	l.cache.SetDefault(key, pair)
	return pair, nil
}

// Forget descarta las entradas cacheadas (tras re-aprovisionar).
func (l *KeyPairLoader) Forget() {
	l.cache.Flush()
}

func readMaterialFiles(cred *entity.BranchCredential) ([]byte, []byte, error) {
	if cred.ArchivePath == "" {
		return nil, nil, domain.ErrCredentialMaterialMissing
	}
	certPEM, err := os.ReadFile(cred.CertificatePath())
	if err != nil {
		return nil, nil, errors.Wrap(domain.ErrCredentialMaterialMissing, err.Error())
	}
	keyPEM, err := os.ReadFile(cred.PrivateKeyPath())
	if err != nil {
		return nil, nil, errors.Wrap(domain.ErrCredentialMaterialMissing, err.Error())
	}
	return certPEM, keyPEM, nil
}

func cacheKey(id string, certPEM, keyPEM []byte) string {
	h := sha256.New()
	h.Write(certPEM)
	h.Write(keyPEM)
	return id + ":" + hex.EncodeToString(h.Sum(nil))
}
