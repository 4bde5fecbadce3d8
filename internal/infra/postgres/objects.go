package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ObjectRepository struct {
	pool *pgxpool.Pool
}

func NewObjectRepository(pool *pgxpool.Pool) *ObjectRepository {
	return &ObjectRepository{pool: pool}
}

// FetchObject loads a media object with its media and image assets, each
// list ordered by creation time.
func (r *ObjectRepository) FetchObject(ctx context.Context, id string) (*entity.MediaObject, error) {
	obj := &entity.MediaObject{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT start_date_time, stop_date_time FROM media_objects WHERE id=$1`, id,
	).Scan(&obj.StartDateTime, &obj.StopDateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: media object %s does not exist", entity.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find media object: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, container_id, name, content_type, asset_type, uri, signed_uri, size, created_at
		FROM assets
		WHERE container_id=$1 AND asset_type = ANY($2)
		ORDER BY created_at, id`,
		id, []string{entity.AssetTypeMedia, entity.AssetTypeImage},
	)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entity.Asset
		if err := rows.Scan(&a.ID, &a.ContainerID, &a.Name, &a.ContentType, &a.AssetType,
			&a.URI, &a.SignedURI, &a.Size, &a.CreatedDateTime); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		switch a.AssetType {
		case entity.AssetTypeMedia:
			obj.MediaAssets = append(obj.MediaAssets, a)
		case entity.AssetTypeImage:
			obj.ImageAssets = append(obj.ImageAssets, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	return obj, nil
}

func (r *ObjectRepository) CreateAsset(ctx context.Context, a *entity.Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assets (id, container_id, name, content_type, asset_type, uri, signed_uri, size, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.ContainerID, a.Name, a.ContentType, a.AssetType, a.URI, a.SignedURI, a.Size, a.CreatedDateTime,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}
