// Package repo contains the PostgreSQL implementations of the domain's
// collaborator interfaces. The orchestration core never imports this
// package; wiring happens in cmd.
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spriteforge/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Create persists one asset record.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO assets (id, owner_id, project_id, kind, url, mime_type, width, height, prompt)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9);
`, asset.ID, asset.OwnerID, asset.ProjectID, asset.Kind, asset.URL, asset.MimeType, asset.Width, asset.Height, asset.Prompt)
	return err
}

// GetByID returns one non-deleted asset.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, owner_id, COALESCE(project_id, ''), kind, url, mime_type, width, height, prompt, created_at
FROM assets
WHERE id = $1 AND deleted_at IS NULL;
`, id)
	var asset domain.Asset
	if err := row.Scan(&asset.ID, &asset.OwnerID, &asset.ProjectID, &asset.Kind, &asset.URL, &asset.MimeType, &asset.Width, &asset.Height, &asset.Prompt, &asset.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ListByOwner returns the owner's newest assets first.
func (r *AssetRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, owner_id, COALESCE(project_id, ''), kind, url, mime_type, width, height, prompt, created_at
FROM assets
WHERE owner_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2;
`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(&asset.ID, &asset.OwnerID, &asset.ProjectID, &asset.Kind, &asset.URL, &asset.MimeType, &asset.Width, &asset.Height, &asset.Prompt, &asset.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// SoftDelete marks the asset deleted without dropping the row.
func (r *AssetRepositoryPG) SoftDelete(ctx context.Context, id, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE assets SET deleted_at = now()
WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL;
`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
