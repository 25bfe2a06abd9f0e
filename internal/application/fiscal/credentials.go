package fiscal

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/jhoicas/vms-fiscal/internal/application/dto"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
	infravms "github.com/jhoicas/vms-fiscal/internal/infrastructure/vms"
	"github.com/jhoicas/vms-fiscal/pkg/keylock"
	"github.com/jhoicas/vms-fiscal/pkg/logger"
)

// ExpiryNoticeDays días antes del vencimiento en los que se avisa.
var ExpiryNoticeDays = []int{30, 5, 4, 3, 2, 1, 0}

// CredentialService registro, aprovisionamiento y consulta de credenciales VMS.
type CredentialService struct {
	tx          TxRunner
	creds       repository.CredentialRepository
	provisioner ArchiveProvisioner
	keypairs    KeyPairCache
	locks       *keylock.KeyLock
	baseDir     string
	log         *logger.Logger
	now         func() time.Time
}

// NewCredentialService construye el servicio. baseDir es la raíz donde se
// escriben <sistema>/<archivo>.pfx y los PEM.
func NewCredentialService(
	tx TxRunner,
	creds repository.CredentialRepository,
	provisioner ArchiveProvisioner,
	keypairs KeyPairCache,
	locks *keylock.KeyLock,
	baseDir string,
	log *logger.Logger,
) *CredentialService {
	return &CredentialService{
		tx:          tx,
		creds:       creds,
		provisioner: provisioner,
		keypairs:    keypairs,
		locks:       locks,
		baseDir:     baseDir,
		log:         log.Component("credentials"),
		now:         time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *CredentialService) WithClock(now func() time.Time) *CredentialService {
	s.now = now
	return s
}

// Register guarda la credencial de una sucursal, inactiva hasta aprovisionarla.
func (s *CredentialService) Register(ctx context.Context, req dto.RegisterCredentialRequest) (*dto.CredentialResponse, error) {
	if err := dto.ValidateRequest(req); err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(req.ArchiveFilename), entity.ArchiveExtension) {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "solo se aceptan archivos %s (recibido %q)",
			entity.ArchiveExtension, req.ArchiveFilename)
	}
	now := s.now()
	if req.ExpiresAt != nil && req.ExpiresAt.Before(now) {
		return nil, errors.Wrap(domain.ErrInvalidInput, "la fecha de vencimiento no puede estar en el pasado")
	}
	if _, err := infravms.DecodeArchive(req.Archive); err != nil {
		return nil, err
	}

	cred := &entity.BranchCredential{
		BranchID:        req.BranchID,
		SystemName:      req.SystemName,
		ArchiveFilename: req.ArchiveFilename,
		Archive:         req.Archive,
		ArchivePassword: req.ArchivePassword,
		UID:             req.UID,
		PAC:             req.PAC,
		ArchivePath:     filepath.Join(s.baseDir, req.SystemName, req.ArchiveFilename),
		ExpiresAt:       req.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, err
	}
	s.log.Info().Str("branch_id", cred.BranchID).Str("archive_path", cred.ArchivePath).Msg("credencial registrada")
	out := dto.CredentialFromEntity(cred, now)
	return &out, nil
}

// Provision extrae certificado y llave del .pfx de la sucursal, los escribe junto
// al archivo y activa la credencial. Un fallo deja la credencial como estaba.
// Aprovisionamientos concurrentes de la misma sucursal se serializan.
func (s *CredentialService) Provision(ctx context.Context, branchID string) (*dto.ProvisionResponse, error) {
	unlock, err := s.locks.Lock(ctx, "credential:"+branchID)
	if err != nil {
		return nil, errors.Wrap(err, "esperando lock de la credencial")
	}
	defer unlock()

	var out *dto.ProvisionResponse
	err = s.tx.RunCredentialLocked(ctx, branchID, func(_ repository.DocumentRepository, creds repository.CredentialRepository) error {
		cred, err := creds.GetByBranch(ctx, branchID)
		if err != nil {
			return err
		}
		if cred == nil {
			return errors.Wrapf(domain.ErrCredentialMissing, "sucursal %s", branchID)
		}
		if cred.ArchivePassword == "" {
			return errors.Wrapf(domain.ErrCredentialPasswordMissing, "sucursal %s", branchID)
		}

		m, err := s.provisioner.Provision(cred.Archive, cred.ArchivePassword)
		if err != nil {
			s.log.Warn().Str("branch_id", branchID).Err(err).Msg("no se pudo abrir el .pfx")
			return err
		}
		if err := s.provisioner.Persist(cred, m); err != nil {
			return err
		}

		now := s.now()
		cred.CertificatePEM = string(m.CertificatePEM)
		cred.PrivateKeyPEM = string(m.PrivateKeyPEM)
		// vale la fecha más temprana entre la declarada y la del certificado
		if cred.ExpiresAt == nil || m.NotAfter.Before(*cred.ExpiresAt) {
			notAfter := m.NotAfter
			cred.ExpiresAt = &notAfter
		}
		cred.Active = true
		cred.UpdatedAt = now
		if err := creds.SaveMaterial(ctx, cred); err != nil {
			return err
		}

		out = &dto.ProvisionResponse{
			Credential: dto.CredentialFromEntity(cred, now),
			Subject:    m.Subject,
			NotAfter:   m.NotAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.keypairs.Forget()
	s.log.Info().Str("branch_id", branchID).Str("subject", out.Subject).Time("not_after", out.NotAfter).Msg("credencial aprovisionada")
	return out, nil
}

// Get devuelve la credencial de la sucursal.
func (s *CredentialService) Get(ctx context.Context, branchID string) (*dto.CredentialResponse, error) {
	cred, err := s.creds.GetByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errors.Wrapf(domain.ErrNotFound, "credencial de la sucursal %s", branchID)
	}
	out := dto.CredentialFromEntity(cred, s.now())
	return &out, nil
}

// ExpiringCredentials credenciales activas que vencen exactamente en alguno de
// los ExpiryNoticeDays respecto a hoy (UTC).
func (s *CredentialService) ExpiringCredentials(ctx context.Context) ([]dto.ExpiringCredentialResponse, error) {
	now := s.now()
	maxDays := lo.Max(ExpiryNoticeDays)
	limit := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, maxDays+1)

	list, err := s.creds.ListExpiringBefore(ctx, limit)
	if err != nil {
		return nil, err
	}
	due := lo.Filter(list, func(c *entity.BranchCredential, _ int) bool {
		return lo.Contains(ExpiryNoticeDays, c.DaysToExpiry(now))
	})
	return lo.Map(due, func(c *entity.BranchCredential, _ int) dto.ExpiringCredentialResponse {
		return dto.ExpiringCredentialResponse{
			BranchID:     c.BranchID,
			SystemName:   c.SystemName,
			ExpiresAt:    *c.ExpiresAt,
			DaysToExpiry: c.DaysToExpiry(now),
		}
	}), nil
}
