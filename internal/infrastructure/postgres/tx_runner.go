package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/vms-fiscal/internal/application/fiscal"
	"github.com/jhoicas/vms-fiscal/internal/domain"
	"github.com/jhoicas/vms-fiscal/internal/domain/repository"
)

var _ fiscal.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	docs repository.DocumentRepository,
	creds repository.CredentialRepository,
) error) error {
	return r.run(ctx, "", "", fn)
}

// RunDocumentLocked igual que Run, pero antes toma el lock de fila del documento
// (SELECT ... FOR UPDATE). Los envíos concurrentes del mismo documento esperan aquí.
func (r *TxRunner) RunDocumentLocked(ctx context.Context, documentID string, fn func(
	docs repository.DocumentRepository,
	creds repository.CredentialRepository,
) error) error {
	return r.run(ctx, `SELECT id FROM fiscal_documents WHERE id = $1 FOR UPDATE`, documentID, fn)
}

// RunCredentialLocked toma el lock de fila de la credencial de la sucursal.
func (r *TxRunner) RunCredentialLocked(ctx context.Context, branchID string, fn func(
	docs repository.DocumentRepository,
	creds repository.CredentialRepository,
) error) error {
	return r.run(ctx, `SELECT id FROM branch_credentials WHERE branch_id = $1 FOR UPDATE`, branchID, fn)
}

func (r *TxRunner) run(ctx context.Context, lockQuery, key string, fn func(
	docs repository.DocumentRepository,
	creds repository.CredentialRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockQuery != "" {
		var id string
		if err := tx.QueryRow(ctx, lockQuery, key).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errors.Wrapf(domain.ErrNotFound, "%s", key)
			}
			return errors.Wrap(err, "lock row")
		}
	}

	if err := fn(NewDocumentRepository(tx), NewCredentialRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
