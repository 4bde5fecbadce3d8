package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("detection"),
		tcpostgres.WithUsername("detect_user"),
		tcpostgres.WithPassword("detect_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(connStr, "../../../migrations"))
	// second run is a no-op
	require.NoError(t, RunMigrations(connStr, "../../../migrations"))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestTaskRepositoryLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewTaskRepository(pool)

	task := entity.NewTask("job-1", "task-1", "rec-1", 3)
	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.FindByID(ctx, "job-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusRunning, got.Status)
	assert.Equal(t, 3, got.MaxAttempts)
	assert.Nil(t, got.Output)
	assert.Nil(t, got.CompletedAt)

	task.MarkRunning()
	output := json.RawMessage(`{"series":[],"assetId":"asset-1"}`)
	task.MarkCompleted(output, "asset-1", entity.PipelineResult{Frames: 4, Failed: 1})
	require.NoError(t, repo.Update(ctx, task))

	got, err = repo.FindByID(ctx, "job-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusComplete, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, "asset-1", got.AssetID)
	assert.Equal(t, 4, got.FrameCount)
	assert.Equal(t, 1, got.FailedFrames)
	assert.JSONEq(t, string(output), string(got.Output))
	require.NotNil(t, got.CompletedAt)
}

func TestTaskRepositoryErrors(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewTaskRepository(pool)

	_, err := repo.FindByID(ctx, "missing", "missing")
	assert.Error(t, err)

	err = repo.Update(ctx, entity.NewTask("missing", "missing", "rec", 1))
	assert.ErrorContains(t, err, "not found")

	task := entity.NewTask("job-1", "task-1", "rec-1", 1)
	require.NoError(t, repo.Create(ctx, task))
	assert.Error(t, repo.Create(ctx, task))
}

func TestObjectRepositoryFetchObject(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewObjectRepository(pool)

	_, err := pool.Exec(ctx,
		`INSERT INTO media_objects (id, start_date_time, stop_date_time) VALUES ($1, $2, $3)`,
		"rec-1", 5.0, 6.0)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	assets := []entity.Asset{
		{ID: "img-1", ContainerID: "rec-1", AssetType: entity.AssetTypeImage, URI: "s3://recordings/rec-1/a.png", CreatedDateTime: base.Add(2 * time.Second)},
		{ID: "media-2", ContainerID: "rec-1", AssetType: entity.AssetTypeMedia, URI: "s3://recordings/rec-1/b.mp4", CreatedDateTime: base.Add(time.Second)},
		{ID: "media-1", ContainerID: "rec-1", AssetType: entity.AssetTypeMedia, URI: "s3://recordings/rec-1/a.mp4", CreatedDateTime: base},
		{ID: "other", ContainerID: "rec-1", AssetType: "v-amazon-rekognition-detect", URI: "s3://artifacts/x.json", CreatedDateTime: base},
	}
	for i := range assets {
		require.NoError(t, repo.CreateAsset(ctx, &assets[i]))
	}

	obj, err := repo.FetchObject(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, obj.StartDateTime)
	assert.Equal(t, 6.0, obj.StopDateTime)
	require.Len(t, obj.MediaAssets, 2)
	assert.Equal(t, "media-1", obj.MediaAssets[0].ID)
	assert.Equal(t, "media-2", obj.MediaAssets[1].ID)
	require.Len(t, obj.ImageAssets, 1)
	assert.Equal(t, "img-1", obj.ImageAssets[0].ID)

	_, err = repo.FetchObject(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrAssetNotFound)

	err = repo.CreateAsset(ctx, &entity.Asset{ID: "orphan", ContainerID: "missing", AssetType: entity.AssetTypeMedia, URI: "s3://x/y"})
	assert.Error(t, err)
}
