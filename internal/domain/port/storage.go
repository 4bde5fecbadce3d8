package port

import (
	"context"
	"io"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

type ObjectStorage interface {
	DownloadObject(ctx context.Context, uri string, destPath string) error
	UploadObject(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error)
}

type AssetDownloader interface {
	DownloadAsset(ctx context.Context, uri string, destDir string) (string, error)
}

type ArtifactUploader interface {
	UploadArtifact(ctx context.Context, artifact entity.Artifact) (*entity.AssetRef, error)
}

type ObjectFetcher interface {
	FetchObject(ctx context.Context, id string) (*entity.MediaObject, error)
}
