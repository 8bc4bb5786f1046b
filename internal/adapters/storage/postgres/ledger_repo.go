package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dog-adoption-service/internal/domain/assets"
	"dog-adoption-service/internal/ports/storage"
)

type LedgerRepo struct {
	baseRepo
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{baseRepo{db: db}}
}

func (r *LedgerRepo) Put(ctx context.Context, a assets.StagedAsset) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO staged_assets (id, kind, filename, content_type, size_bytes, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		a.ID,
		string(a.Kind),
		a.Filename,
		a.ContentType,
		a.Size,
		a.UploadedAt,
	)
	return err
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (assets.StagedAsset, error) {
	row := r.q(ctx).QueryRowContext(ctx, `
		SELECT id, kind, filename, content_type, size_bytes, uploaded_at
		FROM staged_assets
		WHERE id = $1
	`, id)

	var a assets.StagedAsset
	var kind string
	if err := row.Scan(&a.ID, &kind, &a.Filename, &a.ContentType, &a.Size, &a.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assets.StagedAsset{}, assets.ErrNotFound
		}
		return assets.StagedAsset{}, err
	}
	a.Kind = storage.Kind(kind)
	return a, nil
}

// Remove es idempotente.
func (r *LedgerRepo) Remove(ctx context.Context, id string) error {
	_, err := r.q(ctx).ExecContext(ctx, `DELETE FROM staged_assets WHERE id = $1`, id)
	return err
}

func (r *LedgerRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]assets.StagedAsset, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
		SELECT id, kind, filename, content_type, size_bytes, uploaded_at
		FROM staged_assets
		WHERE uploaded_at < $1
		ORDER BY uploaded_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]assets.StagedAsset, 0)
	for rows.Next() {
		var a assets.StagedAsset
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.Filename, &a.ContentType, &a.Size, &a.UploadedAt); err != nil {
			return nil, err
		}
		a.Kind = storage.Kind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}
