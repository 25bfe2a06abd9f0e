package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/entity"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo implementa CredentialRepository sobre PostgreSQL (pool o tx).
type CredentialRepo struct {
	q Querier
}

// NewCredentialRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCredentialRepository(q Querier) *CredentialRepo {
	return &CredentialRepo{q: q}
}

const credentialColumns = `
	id, branch_id, system_name, archive_filename, archive, archive_password,
	uid, pac, archive_path, expires_at, active, certificate_pem, private_key_pem,
	created_at, updated_at`

func (r *CredentialRepo) Create(ctx context.Context, cred *entity.BranchCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO branch_credentials
			(id, branch_id, system_name, archive_filename, archive, archive_password,
			 uid, pac, archive_path, expires_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, q,
		cred.ID, cred.BranchID, cred.SystemName, cred.ArchiveFilename, cred.Archive, cred.ArchivePassword,
		nullIfEmpty(cred.UID), cred.PAC, cred.ArchivePath, cred.ExpiresAt, cred.Active,
		cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "la sucursal %s ya tiene credencial", cred.BranchID), domain.ErrDuplicate)
		}
		return errors.Wrap(err, "insert branch_credential")
	}
	return nil
}

func (r *CredentialRepo) GetByID(ctx context.Context, id string) (*entity.BranchCredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM branch_credentials WHERE id = $1`
	cred, err := scanCredential(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get branch_credential by id")
	}
	return cred, nil
}

func (r *CredentialRepo) GetByBranch(ctx context.Context, branchID string) (*entity.BranchCredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM branch_credentials WHERE branch_id = $1`
	cred, err := scanCredential(r.q.QueryRow(ctx, q, branchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get branch_credential by branch")
	}
	return cred, nil
}

// SaveMaterial escribe solo lo que produce el aprovisionamiento.
func (r *CredentialRepo) SaveMaterial(ctx context.Context, cred *entity.BranchCredential) error {
	const q = `
		UPDATE branch_credentials
		SET certificate_pem = $2,
		    private_key_pem = $3,
		    expires_at      = COALESCE($4, expires_at),
		    archive_path    = $5,
		    active          = $6,
		    updated_at      = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q,
		cred.ID, nullIfEmpty(cred.CertificatePEM), nullIfEmpty(cred.PrivateKeyPEM),
		cred.ExpiresAt, cred.ArchivePath, cred.Active, cred.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "update branch_credential material")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "credencial %s", cred.ID)
	}
	return nil
}

func (r *CredentialRepo) ListExpiringBefore(ctx context.Context, limit time.Time) ([]*entity.BranchCredential, error) {
	q := `SELECT ` + credentialColumns + `
		FROM branch_credentials
		WHERE active AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at`
	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list expiring branch_credentials")
	}
	defer rows.Close()

	var out []*entity.BranchCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan branch_credential")
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func scanCredential(row pgxScanner) (*entity.BranchCredential, error) {
	var c entity.BranchCredential
	var uid, certPEM, keyPEM *string
	err := row.Scan(
		&c.ID, &c.BranchID, &c.SystemName, &c.ArchiveFilename, &c.Archive, &c.ArchivePassword,
		&uid, &c.PAC, &c.ArchivePath, &c.ExpiresAt, &c.Active, &certPEM, &keyPEM,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.UID = derefStr(uid)
	c.CertificatePEM = derefStr(certPEM)
	c.PrivateKeyPEM = derefStr(keyPEM)
	return &c, nil
}
