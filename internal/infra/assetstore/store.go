package assetstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store resolves asset bytes through object storage and records derived
// artifacts as assets of their media object.
type Store struct {
	objects port.ObjectRepository
	storage port.ObjectStorage
	logger  *zap.Logger
}

func NewStore(objects port.ObjectRepository, storage port.ObjectStorage, logger *zap.Logger) *Store {
	return &Store{objects: objects, storage: storage, logger: logger}
}

func (s *Store) FetchObject(ctx context.Context, id string) (*entity.MediaObject, error) {
	return s.objects.FetchObject(ctx, id)
}

// DownloadAsset copies uri into destDir, naming the file after the last
// path element of the URI without its query string.
func (s *Store) DownloadAsset(ctx context.Context, uri string, destDir string) (string, error) {
	name := fileNameFromURI(uri)
	if name == "" {
		return "", fmt.Errorf("%w: cannot derive file name from %q", entity.ErrAssetNotFound, uri)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	dest := filepath.Join(destDir, name)
	start := time.Now()
	if err := s.storage.DownloadObject(ctx, uri, dest); err != nil {
		return "", err
	}
	s.logger.Debug("asset downloaded", zap.String("uri", uri), zap.Duration("took", time.Since(start)))
	return dest, nil
}

// UploadArtifact stores the artifact bytes under <container>/<asset id>/<name>
// and registers the asset row.
func (s *Store) UploadArtifact(ctx context.Context, a entity.Artifact) (*entity.AssetRef, error) {
	if a.ContainerID == "" || a.Name == "" || a.AssetType == "" {
		return nil, fmt.Errorf("%w: artifact needs container id, name and asset type", entity.ErrUpload)
	}

	id := uuid.New().String()
	key := path.Join(a.ContainerID, id, a.Name)

	uri, err := s.storage.UploadObject(ctx, key, bytes.NewReader(a.Data), int64(len(a.Data)), a.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUpload, err)
	}

	asset := &entity.Asset{
		ID:              id,
		ContainerID:     a.ContainerID,
		Name:            a.Name,
		ContentType:     a.ContentType,
		AssetType:       a.AssetType,
		URI:             uri,
		Size:            int64(len(a.Data)),
		CreatedDateTime: time.Now().UTC(),
	}
	if err := s.objects.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUpload, err)
	}

	s.logger.Info("artifact uploaded",
		zap.String("asset_id", id),
		zap.String("asset_type", a.AssetType),
		zap.String("source", a.Source),
		zap.Int("size", len(a.Data)),
	)
	return &entity.AssetRef{ID: id, URI: uri}, nil
}

func fileNameFromURI(uri string) string {
	raw := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		raw = u.Path
	} else if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	name := path.Base(raw)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
