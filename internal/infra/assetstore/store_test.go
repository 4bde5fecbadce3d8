package assetstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeObjects struct {
	obj      *entity.MediaObject
	created  []*entity.Asset
	fetchErr error
	saveErr  error
}

func (f *fakeObjects) FetchObject(context.Context, string) (*entity.MediaObject, error) {
	return f.obj, f.fetchErr
}

func (f *fakeObjects) CreateAsset(_ context.Context, a *entity.Asset) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.created = append(f.created, a)
	return nil
}

type fakeStorage struct {
	downloaded map[string]string
	uploaded   map[string][]byte
	contentTyp string
	err        error
}

func (f *fakeStorage) DownloadObject(_ context.Context, uri string, destPath string) error {
	if f.err != nil {
		return f.err
	}
	if f.downloaded == nil {
		f.downloaded = map[string]string{}
	}
	f.downloaded[uri] = destPath
	return os.WriteFile(destPath, []byte(uri), 0o644)
}

func (f *fakeStorage) UploadObject(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[key] = data
	f.contentTyp = contentType
	return "s3://artifacts/" + key, nil
}

func TestDownloadAsset(t *testing.T) {
	storage := &fakeStorage{}
	store := NewStore(&fakeObjects{}, storage, zap.NewNop())
	dir := filepath.Join(t.TempDir(), "work")

	tests := map[string]string{
		"s3://recordings/rec-1/clip.mp4":                           "clip.mp4",
		"https://minio.local/recordings/photo.jpg?X-Amz-Expires=60": "photo.jpg",
		"rec-2/video.webm":                                         "video.webm",
	}
	for uri, name := range tests {
		path, err := store.DownloadAsset(context.Background(), uri, dir)
		require.NoError(t, err, uri)
		assert.Equal(t, filepath.Join(dir, name), path)
		assert.FileExists(t, path)
		assert.Equal(t, path, storage.downloaded[uri])
	}
}

func TestDownloadAssetErrors(t *testing.T) {
	store := NewStore(&fakeObjects{}, &fakeStorage{}, zap.NewNop())
	_, err := store.DownloadAsset(context.Background(), "s3://recordings/", t.TempDir())
	require.Error(t, err)

	failing := NewStore(&fakeObjects{}, &fakeStorage{err: errors.New("access denied")}, zap.NewNop())
	_, err = failing.DownloadAsset(context.Background(), "s3://recordings/a.mp4", t.TempDir())
	assert.ErrorContains(t, err, "access denied")
}

func TestUploadArtifact(t *testing.T) {
	objects := &fakeObjects{}
	storage := &fakeStorage{}
	store := NewStore(objects, storage, zap.NewNop())

	ref, err := store.UploadArtifact(context.Background(), entity.Artifact{
		ContainerID: "rec-1",
		ContentType: "application/json",
		AssetType:   "v-amazon-rekognition-detect",
		Name:        "amazon-rekognition-detect-face.json",
		Data:        []byte(`{"series":[]}`),
	})
	require.NoError(t, err)

	require.NotEmpty(t, ref.ID)
	assert.True(t, strings.HasPrefix(ref.URI, "s3://artifacts/rec-1/"+ref.ID+"/"))
	assert.Equal(t, "application/json", storage.contentTyp)

	require.Len(t, objects.created, 1)
	a := objects.created[0]
	assert.Equal(t, ref.ID, a.ID)
	assert.Equal(t, "rec-1", a.ContainerID)
	assert.Equal(t, "v-amazon-rekognition-detect", a.AssetType)
	assert.Equal(t, ref.URI, a.URI)
	assert.Equal(t, int64(13), a.Size)
	assert.False(t, a.CreatedDateTime.IsZero())

	key := "rec-1/" + ref.ID + "/amazon-rekognition-detect-face.json"
	assert.Equal(t, `{"series":[]}`, string(storage.uploaded[key]))
}

func TestUploadArtifactErrors(t *testing.T) {
	valid := entity.Artifact{ContainerID: "rec", AssetType: "kind", Name: "out.json", Data: []byte("{}")}

	_, err := NewStore(&fakeObjects{}, &fakeStorage{}, zap.NewNop()).UploadArtifact(context.Background(), entity.Artifact{Name: "x"})
	assert.ErrorIs(t, err, entity.ErrUpload)

	_, err = NewStore(&fakeObjects{}, &fakeStorage{err: errors.New("timeout")}, zap.NewNop()).UploadArtifact(context.Background(), valid)
	assert.ErrorIs(t, err, entity.ErrUpload)

	_, err = NewStore(&fakeObjects{saveErr: errors.New("duplicate key")}, &fakeStorage{}, zap.NewNop()).UploadArtifact(context.Background(), valid)
	assert.ErrorIs(t, err, entity.ErrUpload)
	assert.False(t, entity.IsSetupFailure(err))
}

func TestFetchObjectPassesThrough(t *testing.T) {
	obj := &entity.MediaObject{ID: "rec"}
	got, err := NewStore(&fakeObjects{obj: obj}, &fakeStorage{}, zap.NewNop()).FetchObject(context.Background(), "rec")
	require.NoError(t, err)
	assert.Same(t, obj, got)
}
